// Package detector finds recurring payments in a list of transactions:
// charges repeating at a roughly monthly interval, and charges whose
// description names them as subscriptions or memberships.
package detector

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeDefault Mode = "default"
	ModeStrict  Mode = "strict"
	ModeLenient Mode = "lenient"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeDefault, nil
	case ModeDefault, ModeStrict, ModeLenient:
		return m, nil
	default:
		return "", fmt.Errorf("unknown detection mode %q (want default, strict or lenient)", s)
	}
}

// Confidence only ever goes up when evidence for a candidate is merged.
type Confidence int

const (
	ConfidenceMedium Confidence = iota + 1
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "High"
	case ConfidenceMedium:
		return "Medium"
	default:
		return "Unknown"
	}
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

type Candidate struct {
	Merchant    string          `json:"merchant" yaml:"merchant"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Confidence  Confidence      `json:"confidence" yaml:"confidence"`
	Reason      string          `json:"reason" yaml:"reason"`
	Evidence    []string        `json:"evidence" yaml:"evidence"`
	NextDue     *time.Time      `json:"next_due,omitempty" yaml:"next_due,omitempty"`
	Occurrences int             `json:"occurrences" yaml:"occurrences"`
	LastSeen    time.Time       `json:"last_seen" yaml:"last_seen"`
}

type candidateView struct {
	Merchant    string          `json:"merchant" yaml:"merchant"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Confidence  string          `json:"confidence" yaml:"confidence"`
	Reason      string          `json:"reason" yaml:"reason"`
	Evidence    []string        `json:"evidence" yaml:"evidence"`
	NextDue     string          `json:"next_due,omitempty" yaml:"next_due,omitempty"`
	Occurrences int             `json:"occurrences" yaml:"occurrences"`
	LastSeen    string          `json:"last_seen" yaml:"last_seen"`
}

func (c Candidate) view() candidateView {
	v := candidateView{
		Merchant:    c.Merchant,
		Amount:      c.Amount,
		Confidence:  c.Confidence.String(),
		Reason:      c.Reason,
		Evidence:    c.Evidence,
		Occurrences: c.Occurrences,
		LastSeen:    common.FormatDate(c.LastSeen),
	}
	if c.NextDue != nil {
		v.NextDue = common.FormatDate(*c.NextDue)
	}
	return v
}

// MarshalJSON writes dates as YYYY-MM-DD.
func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.view())
}

func (c Candidate) MarshalYAML() (interface{}, error) {
	return c.view(), nil
}

// absorb merges other into c. A stronger candidate replaces c's fields; the
// evidence and reasons of both are kept.
func (c *Candidate) absorb(other Candidate) {
	if other.Confidence > c.Confidence {
		evidence := append(slices.Clone(other.Evidence), c.Evidence...)
		reason := joinReasons(other.Reason, c.Reason)
		*c = other
		c.Evidence = evidence
		c.Reason = reason
		return
	}
	c.Evidence = append(c.Evidence, other.Evidence...)
	c.Reason = joinReasons(c.Reason, other.Reason)
}

func joinReasons(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "" || slices.Contains(strings.Split(a, "; "), b):
		return a
	default:
		return a + "; " + b
	}
}

type Options struct {
	Mode         Mode
	Fuzzy        bool
	MerchantOnly bool
	// Threshold is the token set ratio fuzzy matches must exceed.
	Threshold int
}

// OptionsFromConfig reads detector.* from viper.
func OptionsFromConfig() (Options, error) {
	mode, err := ParseMode(viper.GetString("detector.mode"))
	if err != nil {
		return Options{}, err
	}
	return Options{
		Mode:         mode,
		Fuzzy:        viper.GetBool("detector.fuzzy"),
		MerchantOnly: viper.GetBool("detector.merchant_only"),
		Threshold:    viper.GetInt("detector.fuzzy_threshold"),
	}, nil
}

type keyword struct {
	label   string
	pattern *regexp.Regexp
}

type settings struct {
	Band        [2]int
	NextDueDays int
	Keywords    []keyword
	Noise       []string
	Aliases     []Alias
}

// shortKeyword is the longest keyword that must match as a whole word, so
// that REC does not fire on RECEIPT.
const shortKeyword = 3

func loadConfig(mode Mode) (settings, error) {
	band := viper.GetIntSlice("detector.bands." + string(mode))
	if len(band) != 2 || band[0] > band[1] {
		return settings{}, fmt.Errorf("detector.bands.%s must be [low, high], got %v", mode, band)
	}

	var aliases []Alias
	if err := viper.UnmarshalKey("detector.aliases", &aliases); err != nil {
		return settings{}, fmt.Errorf("detector.aliases: %w", err)
	}

	cfg := settings{
		Band:        [2]int{band[0], band[1]},
		NextDueDays: viper.GetInt("detector.next_due_days"),
		Noise:       viper.GetStringSlice("detector.noise"),
		Aliases:     aliases,
	}
	for _, k := range viper.GetStringSlice("detector.keywords") {
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		expr := regexp.QuoteMeta(k)
		if len(k) <= shortKeyword {
			expr = `\b` + expr + `\b`
		}
		cfg.Keywords = append(cfg.Keywords, keyword{label: k, pattern: regexp.MustCompile(`(?i)` + expr)})
	}
	return cfg, nil
}

type Detector struct {
	opts       Options
	cfg        settings
	normalizer *Normalizer
}

func New(opts Options) (*Detector, error) {
	if opts.Mode == "" {
		opts.Mode = ModeDefault
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 80
	}

	cfg, err := loadConfig(opts.Mode)
	if err != nil {
		return nil, err
	}
	return &Detector{
		opts:       opts,
		cfg:        cfg,
		normalizer: NewNormalizer(cfg.Noise, cfg.Aliases),
	}, nil
}

// NewFromConfig is New with unset options taken from configuration. Flags
// can only switch Fuzzy and MerchantOnly on.
func NewFromConfig(opts Options) (*Detector, error) {
	defaults, err := OptionsFromConfig()
	if err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	opts.Fuzzy = opts.Fuzzy || defaults.Fuzzy
	opts.MerchantOnly = opts.MerchantOnly || defaults.MerchantOnly
	if opts.Threshold <= 0 {
		opts.Threshold = defaults.Threshold
	}
	return New(opts)
}

// Normalize exposes the merchant key a description groups under.
func (d *Detector) Normalize(description string) string {
	return d.normalizer.Normalize(description)
}

type entry struct {
	tx       common.Transaction
	merchant string
	amount   decimal.Decimal
}

func (d *Detector) sameGroup(a, b entry) bool {
	if !d.opts.MerchantOnly && !a.amount.Equal(b.amount) {
		return false
	}
	if a.merchant == b.merchant {
		return true
	}
	return d.opts.Fuzzy && TokenSetRatio(a.merchant, b.merchant) > d.opts.Threshold
}

// group clusters entries greedily: each unassigned entry opens a group and
// pulls in every later entry that matches it.
func (d *Detector) group(entries []entry) [][]entry {
	assigned := make([]bool, len(entries))
	var groups [][]entry
	for i := range entries {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		g := []entry{entries[i]}
		for j := i + 1; j < len(entries); j++ {
			if !assigned[j] && d.sameGroup(entries[i], entries[j]) {
				assigned[j] = true
				g = append(g, entries[j])
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// Detect returns recurring payment candidates, High confidence first, then
// by merchant and amount. The input is not modified.
func (d *Detector) Detect(txs []common.Transaction) []Candidate {
	entries := make([]entry, 0, len(txs))
	for _, tx := range txs {
		merchant := d.normalizer.Normalize(tx.Description)
		// Nothing but dates, references and noise: no merchant to attribute.
		if merchant == "" {
			continue
		}
		entries = append(entries, entry{
			tx:       tx,
			merchant: merchant,
			amount:   tx.Amount.Round(2),
		})
	}

	var keys []string
	byKey := map[string]*Candidate{}
	add := func(key string, c Candidate) {
		if existing, ok := byKey[key]; ok {
			existing.absorb(c)
			return
		}
		keys = append(keys, key)
		byKey[key] = &c
	}

	for _, g := range d.group(entries) {
		slices.SortStableFunc(g, func(a, b entry) int { return a.tx.Date.Compare(b.tx.Date) })
		key := g[0].merchant + "|" + g[0].amount.StringFixed(2)

		for _, e := range g {
			if c, ok := d.keyword(e, g); ok {
				add(key, c)
			}
		}
		if c, ok := d.periodic(g); ok {
			add(key, c)
		}
	}

	candidates := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		candidates = append(candidates, *byKey[k])
	}
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := strings.Compare(a.Merchant, b.Merchant); c != 0 {
			return c
		}
		return a.Amount.Cmp(b.Amount)
	})
	return candidates
}

// periodic confirms a date-sorted group when any gap between consecutive
// charges falls inside the mode's band.
func (d *Detector) periodic(g []entry) (Candidate, bool) {
	if len(g) < 2 {
		return Candidate{}, false
	}

	intervals := make([]string, 0, len(g)-1)
	confirmed := false
	for i := 1; i < len(g); i++ {
		days := daysBetween(g[i-1].tx.Date, g[i].tx.Date)
		intervals = append(intervals, fmt.Sprint(days))
		if days >= d.cfg.Band[0] && days <= d.cfg.Band[1] {
			confirmed = true
		}
	}
	if !confirmed {
		return Candidate{}, false
	}

	sum := decimal.Zero
	for _, e := range g {
		sum = sum.Add(e.amount)
	}
	last := g[len(g)-1].tx.Date
	next := last.AddDate(0, 0, d.cfg.NextDueDays)

	return Candidate{
		Merchant:    g[0].merchant,
		Amount:      sum.Div(decimal.NewFromInt(int64(len(g)))).Round(2),
		Confidence:  ConfidenceHigh,
		Reason:      fmt.Sprintf("Periodic: charged every %d-%d days", d.cfg.Band[0], d.cfg.Band[1]),
		Evidence:    []string{"Intervals: [" + strings.Join(intervals, ", ") + "]"},
		NextDue:     &next,
		Occurrences: len(g),
		LastSeen:    last,
	}, true
}

func (d *Detector) keyword(e entry, g []entry) (Candidate, bool) {
	for _, k := range d.cfg.Keywords {
		if !k.pattern.MatchString(e.tx.Description) {
			continue
		}
		return Candidate{
			Merchant:    g[0].merchant,
			Amount:      g[0].amount,
			Confidence:  ConfidenceMedium,
			Reason:      "Keyword: " + k.label,
			Evidence:    []string{fmt.Sprintf("%s %q", common.FormatDate(e.tx.Date), e.tx.Description)},
			Occurrences: len(g),
			LastSeen:    g[len(g)-1].tx.Date,
		}, true
	}
	return Candidate{}, false
}

func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
