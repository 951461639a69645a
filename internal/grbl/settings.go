package grbl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// catalog describes every numbered setting. It is never modified at run time;
// values live in Settings.
var catalog = map[string]string{
	"$0":   "step pulse, usec",
	"$1":   "step idle delay, msec",
	"$2":   "step port invert mask:00000000",
	"$3":   "dir port invert mask:00000011",
	"$4":   "step enable invert, bool",
	"$5":   "limit pins invert, bool",
	"$6":   "probe pin invert, bool",
	"$10":  "status report mask:00000011",
	"$11":  "junction deviation, mm",
	"$12":  "arc tolerance, mm",
	"$13":  "report inches, bool",
	"$20":  "soft limits, bool",
	"$21":  "hard limits, bool",
	"$22":  "homing cycle, bool",
	"$23":  "homing dir invert mask:00000011",
	"$24":  "homing feed, mm/min",
	"$25":  "homing seek, mm/min",
	"$26":  "homing debounce, msec",
	"$27":  "homing pull-off, mm",
	"$100": "x, step/mm",
	"$101": "y, step/mm",
	"$102": "z, step/mm",
	"$110": "x max rate, mm/min",
	"$111": "y max rate, mm/min",
	"$112": "z max rate, mm/min",
	"$120": "x accel, mm/sec^2",
	"$121": "y accel, mm/sec^2",
	"$122": "z accel, mm/sec^2",
	"$130": "x max travel, mm",
	"$131": "y max travel, mm",
	"$132": "z max travel, mm",
}

// Describe returns the catalog description of key.
func Describe(key string) (string, bool) {
	d, ok := catalog[key]
	return d, ok
}

// CatalogKeys returns the catalog keys in numeric order.
func CatalogKeys() []string {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return settingNumber(keys[i]) < settingNumber(keys[j]) })
	return keys
}

// DescribeCatalog lists the catalog one "key : description" line per entry.
func DescribeCatalog() string {
	lines := make([]string, 0, len(catalog))
	for _, k := range CatalogKeys() {
		lines = append(lines, fmt.Sprintf("%4s : %s", k, catalog[k]))
	}
	return strings.Join(lines, "\n")
}

func settingNumber(key string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "$"))
	if err != nil {
		return -1
	}
	return n
}

// Settings is an ordered key/value table of numbered controller settings.
type Settings struct {
	keys   []string
	values map[string]string
}

// NewSettings returns an empty table.
func NewSettings() *Settings {
	return &Settings{values: make(map[string]string)}
}

// Set adds or replaces key. New keys keep insertion order.
func (s *Settings) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the value of key.
func (s *Settings) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in order.
func (s *Settings) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Len returns the number of entries.
func (s *Settings) Len() int { return len(s.keys) }

// Map returns a copy of the table as a map.
func (s *Settings) Map() map[string]string {
	m := make(map[string]string, len(s.values))
	for k, v := range s.values {
		m[k] = v
	}
	return m
}

var settingRe = regexp.MustCompile(`^\$(\d+)=([-+]?\d*\.?\d+)`)

// ParseSettings extracts "$n=value" lines, skipping everything else
// (banners, echoes, acknowledgments). Values are kept exactly as printed,
// decimals included.
func ParseSettings(lines []string) *Settings {
	s := NewSettings()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}
		m := settingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		s.Set("$"+m[1], m[2])
	}
	return s
}

// Render prints one "key=value (description)" line per entry. A key missing
// from the catalog is a programming error and panics.
func Render(s *Settings) string {
	lines := make([]string, 0, s.Len())
	for _, k := range s.keys {
		desc, ok := catalog[k]
		if !ok {
			panic(fmt.Sprintf("grbl: setting %s is not in the catalog", k))
		}
		lines = append(lines, fmt.Sprintf("%s=%s (%s)", k, s.values[k], desc))
	}
	return strings.Join(lines, "\n")
}

// ReadSettingsFromController queries $$ and parses the reply.
func ReadSettingsFromController(ctx context.Context, c *Client) (*Settings, error) {
	resp, err := c.ViewSettings(ctx)
	if err != nil {
		return nil, err
	}
	return ParseSettings(resp.Lines), nil
}

// WriteSettingsToController stores each setting in order. Settings already
// written stay written if a later one fails.
func WriteSettingsToController(ctx context.Context, c *Client, s *Settings) error {
	for _, k := range s.keys {
		n := settingNumber(k)
		if n < 0 {
			return fmt.Errorf("setting key %q is not numbered", k)
		}
		resp, err := c.SaveSetting(ctx, n, s.values[k])
		if err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
		if err := resp.Err(); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}
	return nil
}

// ReadSettingsFile parses a file written by WriteSettingsFile (or a raw $$ dump).
func ReadSettingsFile(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return ParseSettings(lines), nil
}

// WriteSettingsFile saves the rendered table.
func WriteSettingsFile(path string, s *Settings) error {
	if err := os.WriteFile(path, []byte(Render(s)), 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
