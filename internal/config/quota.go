package config

import "time"

type QuotaConfig struct {
	// FreeStarter is the swap quota granted on first interaction.
	FreeStarter int
	// PremiumBonusQuota and PremiumBonusTargets are added on every premium
	// purchase. Purchases are additive and repeatable.
	PremiumBonusQuota   int
	PremiumBonusTargets int
	// PremiumUnlimited lifts the quota ceiling for premium accounts
	// entirely; successful swaps are then not charged.
	PremiumUnlimited bool
	// ReservationTTL is the maximum lifetime of an in-flight reservation
	// before the watchdog force-releases it.
	ReservationTTL time.Duration
	// SubmitInterval is the minimum delay between photo submissions from
	// one user.
	SubmitInterval time.Duration
}

func GetQuotaConfig() QuotaConfig {
	return QuotaConfig{
		FreeStarter:         ParseEnvInt("QUOTA_FREE_STARTER", 10),
		PremiumBonusQuota:   ParseEnvInt("QUOTA_PREMIUM_BONUS", 100),
		PremiumBonusTargets: ParseEnvInt("QUOTA_PREMIUM_TARGET_SLOTS", 10),
		PremiumUnlimited:    ParseEnvBool("QUOTA_PREMIUM_UNLIMITED", false),
		ReservationTTL:      ParseEnvDuration("RESERVATION_TTL", time.Minute),
		SubmitInterval:      ParseEnvDuration("SUBMIT_INTERVAL", 20*time.Second),
	}
}
