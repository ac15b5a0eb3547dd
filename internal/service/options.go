package service

import (
	"wa-blaster/config"
)

func BlasterOptionsFrom(cfg config.BlastConfig) BlasterOptions {
	return BlasterOptions{
		ChatURL: cfg.ChatURL,
		Selectors: Selectors{
			MessageBox:    cfg.MessageBoxSelector,
			SendButton:    cfg.SendButtonSelector,
			AttachInput:   cfg.AttachInputSelector,
			AttachSend:    cfg.AttachSendSelector,
			InvalidNumber: cfg.InvalidNumberSelector,
		},
		NavigateSettle: cfg.NavigateSettle,
		AttachDelay:    cfg.AttachDelay,
		PasteDelay:     cfg.PasteDelay,
		ElementTimeout: cfg.ElementTimeout,
		Retry: RetryPolicy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBase,
			MaxDelay:  cfg.RetryMax,
		},
	}
}

func ThrottleOptionsFrom(cfg config.ThrottleConfig) ThrottleOptions {
	return ThrottleOptions{
		Enabled:        cfg.Enabled,
		SendsPerMinute: float64(cfg.SendsPerMinute),
		Burst:          cfg.Burst,
		BasePauseMin:   cfg.BasePauseMin,
		BasePauseMax:   cfg.BasePauseMax,
		ShortEvery:     cfg.ShortEvery,
		ShortPauseMin:  cfg.ShortPauseMin,
		ShortPauseMax:  cfg.ShortPauseMax,
		LongEvery:      cfg.LongEvery,
		LongPauseMin:   cfg.LongPauseMin,
		LongPauseMax:   cfg.LongPauseMax,
	}
}
