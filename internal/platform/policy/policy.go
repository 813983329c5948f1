package policy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Policy holds business knobs that change without a deploy of the settlement code.
type Policy struct {
	Currency   CurrencyPolicy   `yaml:"currency"`
	Delivery   DeliveryPolicy   `yaml:"delivery"`
	Withdrawal WithdrawalPolicy `yaml:"withdrawal"`
	Dispute    DisputePolicy    `yaml:"dispute"`
}

type CurrencyPolicy struct {
	Default   string   `yaml:"default"`
	Supported []string `yaml:"supported"`
}

type DeliveryPolicy struct {
	DecisionWindowHours    int `yaml:"decision_window_hours"`
	ConfirmationCodeLength int `yaml:"confirmation_code_length"`
}

type WithdrawalPolicy struct {
	MinAmount string   `yaml:"min_amount"`
	MaxAmount string   `yaml:"max_amount"`
	Channels  []string `yaml:"channels"`
}

type DisputePolicy struct {
	AllowCompromise bool `yaml:"allow_compromise"`
}

// Default parses the embedded policy document.
func Default() Policy {
	p, err := Parse(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded policy.yaml invalid: %v", err))
	}
	return p
}

// Load reads path when non-empty and overlays it on the embedded defaults.
func Load(path string) (Policy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: read %s: %w", path, err)
	}
	p := Default()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return p, p.validate()
}

func Parse(raw []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, err
	}
	return p, p.validate()
}

func (p Policy) validate() error {
	if len(strings.TrimSpace(p.Currency.Default)) != 3 {
		return fmt.Errorf("policy: currency.default must be a 3-letter code")
	}
	if p.Delivery.DecisionWindowHours <= 0 {
		return fmt.Errorf("policy: delivery.decision_window_hours must be > 0")
	}
	if p.Delivery.ConfirmationCodeLength <= 0 {
		return fmt.Errorf("policy: delivery.confirmation_code_length must be > 0")
	}
	return nil
}

func (p Policy) DecisionWindow() time.Duration {
	return time.Duration(p.Delivery.DecisionWindowHours) * time.Hour
}

func (p Policy) DefaultCurrency() string {
	return strings.ToUpper(strings.TrimSpace(p.Currency.Default))
}

func (p Policy) SupportsCurrency(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range p.Currency.Supported {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

func (p Policy) SupportsChannel(channel string) bool {
	channel = strings.ToLower(strings.TrimSpace(channel))
	for _, c := range p.Withdrawal.Channels {
		if strings.EqualFold(c, channel) {
			return true
		}
	}
	return false
}
