package tui

import (
	"errors"
	"net/url"
	"strings"

	"github.com/theirongolddev/roundup/internal/config"
	"github.com/theirongolddev/roundup/internal/starling"
	"github.com/theirongolddev/roundup/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues holds the answers of the setup wizard.
type SetupValues struct {
	Token    string
	BaseURL  string
	Currency string
	Theme    string
	Journal  bool
}

// SetupValuesFrom seeds the wizard with the current configuration.
func SetupValuesFrom(cfg config.Config) SetupValues {
	base := cfg.API.BaseURL
	if base == "" {
		base = starling.DefaultBaseURL
	}
	return SetupValues{
		Token:    cfg.API.AccessToken,
		BaseURL:  base,
		Currency: cfg.Transfer.DefaultCurrency,
		Theme:    cfg.Appearance.Theme,
		Journal:  cfg.Journal.Enabled,
	}
}

// Apply copies the answers into cfg. A blank token keeps the stored one.
func (v SetupValues) Apply(cfg *config.Config) {
	if tok := strings.TrimSpace(v.Token); tok != "" {
		cfg.API.AccessToken = tok
	}
	cfg.API.BaseURL = strings.TrimSpace(v.BaseURL)
	if cfg.API.BaseURL == starling.DefaultBaseURL {
		cfg.API.BaseURL = ""
	}
	cfg.Transfer.DefaultCurrency = config.NormalizeCurrency(v.Currency)
	cfg.Appearance.Theme = v.Theme
	cfg.Journal.Enabled = v.Journal
}

// NewSetupForm builds the first-run wizard. Answers are written to vals.
func NewSetupForm(vals *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, name := range theme.Names() {
		themeOpts = append(themeOpts, huh.NewOption(name, name))
	}

	currencyOpts := make([]huh.Option[string], 0, len(config.DefaultCurrencies))
	for _, code := range []string{"GBP", "EUR", "USD"} {
		c := config.DefaultCurrencies[code]
		currencyOpts = append(currencyOpts, huh.NewOption(c.Symbol+" "+c.Code, c.Code))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to roundup").
				Description("Sweep the spare change from a week of card spending into a savings goal."),
			huh.NewInput().
				Title("Personal access token").
				Description("Create one in the developer portal. Leave blank to enter it on launch.").
				EchoMode(huh.EchoModePassword).
				Value(&vals.Token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					return starling.ValidateToken(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("API base URL").
				Value(&vals.BaseURL).
				Validate(validateBaseURL),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Fallback transfer currency").
				Description("Used only when the account reports none.").
				Options(currencyOpts...).
				Value(&vals.Currency),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
			huh.NewConfirm().
				Title("Keep a local journal of transfers?").
				Value(&vals.Journal),
		),
	).WithShowHelp(true)
}

func validateBaseURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}
