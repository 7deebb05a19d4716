// Package providers wires the external collaborator implementations: PDF
// rendering and email delivery.
package providers

import (
	"github.com/smallbiznis/faktura/internal/config"
	"github.com/smallbiznis/faktura/internal/providers/email"
	"github.com/smallbiznis/faktura/internal/providers/pdf"
	"go.uber.org/fx"
)

func NewEmailProvider(cfg config.Config) email.Provider {
	if cfg.SMTPHost == "" {
		return &email.NoOpProvider{}
	}
	return email.NewSMTP(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

func NewPDFProvider() pdf.Provider {
	return pdf.New()
}

var Module = fx.Module("providers",
	fx.Provide(
		NewEmailProvider,
		NewPDFProvider,
	),
)
