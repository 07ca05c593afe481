package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"fitcenter-checkout/internal/domain/model"
)

//go:embed locales
var LocalesFS embed.FS

const fallbackLang = "en"

// Translator resolves message keys for one language, falling back to English.
type Translator struct {
	lang         string
	translations map[string]string
	fallback     map[string]string
}

func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	primary, err := readCatalog(fsys, langCode)
	if err != nil {
		return nil, err
	}
	t := &Translator{lang: langCode, translations: primary}
	if langCode != fallbackLang {
		if t.fallback, err = readCatalog(fsys, fallbackLang); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readCatalog(fsys fs.FS, langCode string) (map[string]string, error) {
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	m, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return m, nil
}

func parseCatalog(data []byte) (map[string]string, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return translations, nil
}

// newTranslatorFromBytes builds a single-catalog translator.
func newTranslatorFromBytes(data []byte) (*Translator, error) {
	m, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}
	return &Translator{translations: m}, nil
}

func (t *Translator) Lang() string { return t.lang }

// T returns the key itself when no catalog has it.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.lookup(key)
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) lookup(key string) (string, bool) {
	if s, ok := t.translations[key]; ok {
		return s, true
	}
	s, ok := t.fallback[key]
	return s, ok
}

func (t *Translator) has(key string) bool {
	_, ok := t.lookup(key)
	return ok
}

// Outcome renders the user-facing message for a finished attempt, or "" while it runs.
// Verification failures carry the attempt id as the support reference.
func (t *Translator) Outcome(a *model.Attempt) string {
	if a == nil || !a.State.IsTerminal() {
		return ""
	}
	if a.State == model.StateCompleted {
		return t.T("outcome.completed", a.Plan.Name)
	}
	f := a.Failure
	if f == nil {
		return t.T("outcome.order_failed", "")
	}
	switch f.Kind {
	case model.FailureCancelled:
		if key := "outcome.cancelled." + f.Code; f.Code != "" && t.has(key) {
			return t.T(key)
		}
		return t.T("outcome.cancelled")
	case model.FailurePlanUnavailable:
		return t.T("outcome.plan_unavailable")
	case model.FailureInput:
		return t.T("outcome.input_failed")
	case model.FailureOrder:
		if f.Ambiguous {
			return t.T("outcome.order_failed.ambiguous")
		}
		return t.T("outcome.order_failed", f.Message)
	case model.FailureGateway:
		if f.Message == "" {
			return t.T("outcome.gateway_failed.generic")
		}
		return t.T("outcome.gateway_failed", f.Message)
	case model.FailureVerification:
		return t.T("outcome.verification_failed", a.ID)
	}
	return t.T("outcome.order_failed", f.Message)
}
