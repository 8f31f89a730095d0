package watchlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mauv0809/dcf/internal/models"
	"github.com/mauv0809/dcf/internal/valuation"
)

// Overrides replaces individual valuation parameters. Nil fields keep the
// inherited value.
type Overrides struct {
	DiscountRate        *float64 `yaml:"discount_rate"`
	ForecastYears       *int     `yaml:"forecast_years"`
	EarningsGrowthRate  *float64 `yaml:"earnings_growth_rate"`
	CapExGrowthRate     *float64 `yaml:"capex_growth_rate"`
	PerpetualGrowthRate *float64 `yaml:"perpetual_growth_rate"`
	WorkingCapitalDecay *float64 `yaml:"working_capital_decay"`
}

// Merge returns o with every field set in child replaced.
func (o Overrides) Merge(child Overrides) Overrides {
	if child.DiscountRate != nil {
		o.DiscountRate = child.DiscountRate
	}
	if child.ForecastYears != nil {
		o.ForecastYears = child.ForecastYears
	}
	if child.EarningsGrowthRate != nil {
		o.EarningsGrowthRate = child.EarningsGrowthRate
	}
	if child.CapExGrowthRate != nil {
		o.CapExGrowthRate = child.CapExGrowthRate
	}
	if child.PerpetualGrowthRate != nil {
		o.PerpetualGrowthRate = child.PerpetualGrowthRate
	}
	if child.WorkingCapitalDecay != nil {
		o.WorkingCapitalDecay = child.WorkingCapitalDecay
	}
	return o
}

// Apply overlays the overrides on p.
func (o Overrides) Apply(p valuation.Parameters) valuation.Parameters {
	if o.DiscountRate != nil {
		p.DiscountRate = decimal.NewFromFloat(*o.DiscountRate)
	}
	if o.ForecastYears != nil {
		p.ForecastYears = *o.ForecastYears
	}
	if o.EarningsGrowthRate != nil {
		p.EarningsGrowthRate = decimal.NewFromFloat(*o.EarningsGrowthRate)
	}
	if o.CapExGrowthRate != nil {
		p.CapExGrowthRate = decimal.NewFromFloat(*o.CapExGrowthRate)
	}
	if o.PerpetualGrowthRate != nil {
		p.PerpetualGrowthRate = decimal.NewFromFloat(*o.PerpetualGrowthRate)
	}
	if o.WorkingCapitalDecay != nil {
		p.WorkingCapitalDecay = decimal.NewNullDecimal(decimal.NewFromFloat(*o.WorkingCapitalDecay))
	}
	return p
}

// file is the on-disk format.
type file struct {
	Name      string    `yaml:"name"`
	Period    string    `yaml:"period"`
	Params    Overrides `yaml:"params"`
	Watchlist []entry   `yaml:"watchlist"`
}

// entry is either a ticker or a named group with its own watchlist.
// A bare scalar ("- AAPL") is shorthand for {sym: AAPL}.
type entry struct {
	Sym       string    `yaml:"sym"`
	Name      string    `yaml:"name"`
	Params    Overrides `yaml:"params"`
	Watchlist []entry   `yaml:"watchlist"`
}

func (e *entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Sym = value.Value
		return nil
	}
	type plain entry
	return value.Decode((*plain)(e))
}

// Item is one ticker to value.
type Item struct {
	Sym    string
	Group  string // slash-joined group path, empty at the top level
	Period models.Period
	Params Overrides
}

// Parameters applies the item's overrides to base.
func (it Item) Parameters(base valuation.Parameters) valuation.Parameters {
	return it.Params.Apply(base)
}

// Watchlist is a flattened set of tickers.
type Watchlist struct {
	Name  string
	Items []Item
}

// Parse decodes one watchlist document.
func Parse(data []byte) (Watchlist, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Watchlist{}, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(f.Watchlist) == 0 {
		return Watchlist{}, fmt.Errorf("invalid yaml: missing 'watchlist'")
	}
	var period models.Period
	if f.Period != "" {
		p, err := models.ParsePeriod(f.Period)
		if err != nil {
			return Watchlist{}, err
		}
		period = p
	}

	wl := Watchlist{Name: f.Name}
	seen := map[string]bool{}
	var walk func(entries []entry, path []string, inherited Overrides)
	walk = func(entries []entry, path []string, inherited Overrides) {
		for _, e := range entries {
			params := inherited.Merge(e.Params)
			if len(e.Watchlist) > 0 {
				next := path
				if name := strings.TrimSpace(e.Name); name != "" {
					next = append(append([]string(nil), path...), name)
				}
				walk(e.Watchlist, next, params)
				continue
			}
			sym := strings.ToUpper(strings.TrimSpace(e.Sym))
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			wl.Items = append(wl.Items, Item{Sym: sym, Group: strings.Join(path, "/"), Period: period, Params: params})
		}
	}
	walk(f.Watchlist, nil, f.Params)
	return wl, nil
}

// Load reads a watchlist file, or every .yaml/.yml file under a directory
// in lexical order. Unnamed lists take the file name.
func Load(path string) (Watchlist, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Watchlist{}, err
	}
	if !info.IsDir() {
		return loadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return Watchlist{}, err
	}
	sort.Strings(files)

	all := Watchlist{Name: filepath.Base(path)}
	seen := map[string]bool{}
	for _, fp := range files {
		wl, err := loadFile(fp)
		if err != nil {
			return Watchlist{}, err
		}
		for _, it := range wl.Items {
			if seen[it.Sym] {
				continue
			}
			seen[it.Sym] = true
			if it.Group == "" {
				it.Group = wl.Name
			}
			all.Items = append(all.Items, it)
		}
	}
	return all, nil
}

func loadFile(path string) (Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Watchlist{}, err
	}
	wl, err := Parse(data)
	if err != nil {
		return Watchlist{}, fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(wl.Name) == "" {
		wl.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return wl, nil
}

// Select keeps the items whose ticker or group matches f.
func (wl Watchlist) Select(f Filter) Watchlist {
	out := Watchlist{Name: wl.Name}
	for _, it := range wl.Items {
		if f.Match(it.Sym) || (it.Group != "" && f.Match(it.Group)) {
			out.Items = append(out.Items, it)
		}
	}
	return out
}

// Tickers returns the symbols in file order.
func (wl Watchlist) Tickers() []string {
	out := make([]string, len(wl.Items))
	for i, it := range wl.Items {
		out[i] = it.Sym
	}
	return out
}
