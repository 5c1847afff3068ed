package privacy

import (
	"fmt"
	"sync"

	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/logger"
	"go.uber.org/zap"
)

// Detector applies the enabled subset of the redaction rules. The rule order
// is fixed; enabling or disabling a rule never reorders the others.
type Detector struct {
	rules   []Rule
	enabled map[string]bool
	logger  *logger.Logger
	mu      sync.RWMutex
}

// New creates a new PII detector instance
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Detector, error) {
	detector := &Detector{
		rules:   GetDefaultRules(),
		enabled: make(map[string]bool),
		logger:  log,
	}

	if err := detector.Configure(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Privacy detector initialized",
		zap.Int("total_rules", len(detector.rules)),
		zap.Int("enabled_rules", detector.countEnabledRules()),
	)

	return detector, nil
}

// Configure replaces the enabled rule set. "all" enables every rule.
// On an unknown name the previous configuration is kept.
func (d *Detector) Configure(detectors []string) error {
	enabled := make(map[string]bool, len(d.rules))
	for _, rule := range d.rules {
		enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range d.rules {
				enabled[rule.Name] = true
			}
			continue
		}

		if _, ok := enabled[detector]; !ok {
			return fmt.Errorf("unknown detector: %s", detector)
		}
		enabled[detector] = true
	}

	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
	return nil
}

// ProcessText processes text through all enabled PII detectors
func (d *Detector) ProcessText(text string) ProcessResult {
	result := Scrub(text, d.activeRules())

	for _, finding := range result.Findings {
		d.logger.Debug("PII detected and masked",
			zap.String("entity_type", finding.EntityType),
			zap.Int("count", finding.Count),
			zap.String("replacement", finding.Masked),
		)
	}

	return result
}

// GetEnabledRules returns the enabled rule names in application order
func (d *Detector) GetEnabledRules() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var names []string
	for _, rule := range d.rules {
		if d.enabled[rule.Name] {
			names = append(names, rule.Name)
		}
	}
	return names
}

// EnableRule enables a specific detection rule
func (d *Detector) EnableRule(ruleName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.enabled[ruleName]; !exists {
		return fmt.Errorf("unknown rule: %s", ruleName)
	}
	d.enabled[ruleName] = true
	d.logger.Info("Detection rule enabled", zap.String("rule", ruleName))
	return nil
}

// DisableRule disables a specific detection rule
func (d *Detector) DisableRule(ruleName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.enabled[ruleName]; !exists {
		return fmt.Errorf("unknown rule: %s", ruleName)
	}
	d.enabled[ruleName] = false
	d.logger.Info("Detection rule disabled", zap.String("rule", ruleName))
	return nil
}

func (d *Detector) activeRules() []Rule {
	d.mu.RLock()
	defer d.mu.RUnlock()

	active := make([]Rule, 0, len(d.rules))
	for _, rule := range d.rules {
		if d.enabled[rule.Name] {
			active = append(active, rule)
		}
	}
	return active
}

func (d *Detector) countEnabledRules() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, enabled := range d.enabled {
		if enabled {
			count++
		}
	}
	return count
}
