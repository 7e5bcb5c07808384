package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/money"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
)

const (
	bloomCapacity = 200_000
	bloomFPR      = 0.001
	progressEvery = 50_000
)

// coverage is one courier's row for a pincode.
type coverage struct {
	pincode        string
	city           string
	state          string
	cod            bool
	deliveryDays   int
	deliveryTime   string
	deliveryCharge money.Amount
}

// merged accumulates coverage for a pincode across courier files.
type merged struct {
	record pincode.ServiceablePincode
	files  uint
}

// add folds c into m: the fastest and cheapest option wins, COD is offered if
// any courier offers it.
func (m *merged) add(c coverage, fileBit uint) {
	r := &m.record
	if m.files == 0 {
		*r = pincode.ServiceablePincode{
			Pincode:        c.pincode,
			City:           c.city,
			State:          c.state,
			IsActive:       true,
			CODAvailable:   c.cod,
			DeliveryDays:   c.deliveryDays,
			DeliveryTime:   c.deliveryTime,
			DeliveryCharge: c.deliveryCharge,
		}
		m.files = fileBit
		return
	}
	m.files |= fileBit
	if r.City == "" {
		r.City = c.city
	}
	if r.State == "" {
		r.State = c.state
	}
	if r.DeliveryTime == "" {
		r.DeliveryTime = c.deliveryTime
	}
	r.CODAvailable = r.CODAvailable || c.cod
	if c.deliveryDays > 0 && (r.DeliveryDays == 0 || c.deliveryDays < r.DeliveryDays) {
		r.DeliveryDays = c.deliveryDays
	}
	if c.deliveryCharge < r.DeliveryCharge {
		r.DeliveryCharge = c.deliveryCharge
	}
}

// mergeCoverage reads every file and returns the pincodes covered by at
// least minCouriers files, sorted by pincode. With minCouriers > 1 a bloom
// filter pass per file keeps pincodes seen in a single file out of memory.
func mergeCoverage(ctx context.Context, files []string, minCouriers int) ([]pincode.ServiceablePincode, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d courier files supported", bits.UintSize)
	}
	if minCouriers > len(files) {
		return nil, errors.Errorf("min couriers %d exceeds %d files", minCouriers, len(files))
	}

	var filters []*bloom.BloomFilter
	if minCouriers > 1 {
		slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
		var err error
		if filters, err = buildBloomFilters(ctx, files); err != nil {
			return nil, errors.Wrap(err, "build bloom filters")
		}
	}

	slog.Info("collecting coverage", slog.Int("files", len(files)), slog.Int("min_couriers", minCouriers))
	results := make([]map[string]*merged, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			res, err := collectFile(gctx, i, f, filters, minCouriers)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make(map[string]*merged)
	for i, res := range results {
		bit := uint(1) << uint(i)
		for code, m := range res {
			acc, ok := all[code]
			if !ok {
				all[code] = m
				continue
			}
			r := m.record
			acc.add(coverage{
				pincode:        r.Pincode,
				city:           r.City,
				state:          r.State,
				cod:            r.CODAvailable,
				deliveryDays:   r.DeliveryDays,
				deliveryTime:   r.DeliveryTime,
				deliveryCharge: r.DeliveryCharge,
			}, bit)
		}
	}

	out := make([]pincode.ServiceablePincode, 0, len(all))
	for _, m := range all {
		if bits.OnesCount(m.files) >= minCouriers {
			out = append(out, m.record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pincode < out[j].Pincode })
	return out, nil
}

func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			if err := streamCoverage(ctx, f, func(c coverage) {
				filter.AddString(c.pincode)
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", f)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// collectFile reads one file. With filters set, a pincode is kept only if at
// least minCouriers-1 other files may contain it.
func collectFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, minCouriers int) (map[string]*merged, error) {
	res := make(map[string]*merged)
	bit := uint(1) << uint(idx)
	var rows, dropped int

	err := streamCoverage(ctx, path, func(c coverage) {
		rows++
		if rows%progressEvery == 0 {
			slog.Info("progress", slog.String("file", path), slog.Int("rows", rows))
		}
		if filters != nil {
			seen := 0
			for j, f := range filters {
				if j != idx && f.TestString(c.pincode) {
					seen++
				}
			}
			if seen < minCouriers-1 {
				dropped++
				return
			}
		}
		m, ok := res[c.pincode]
		if !ok {
			m = &merged{}
			res[c.pincode] = m
		}
		m.add(c, bit)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	slog.Info("file complete",
		slog.String("file", path),
		slog.Int("rows", rows),
		slog.Int("pincodes", len(res)),
		slog.Int("dropped", dropped),
	)
	return res, nil
}

// streamCoverage opens a gzip-compressed courier CSV and calls fn for each
// valid row. The header names the columns; pincode is required. Invalid rows
// are logged and skipped.
func streamCoverage(ctx context.Context, path string, fn func(coverage)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return errors.Wrap(err, "read header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["pincode"]; !ok {
		return errors.New("header has no pincode column")
	}

	var skipped int
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		c, err := parseRow(cols, rec)
		if err != nil {
			skipped++
			slog.Warn("skipping row", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		fn(c)
	}
	if skipped > 0 {
		slog.Warn("rows skipped", slog.String("file", path), slog.Int("count", skipped))
	}
	return nil
}

func parseRow(cols map[string]int, rec []string) (coverage, error) {
	field := func(name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	c := coverage{
		pincode:      field("pincode"),
		city:         field("city"),
		state:        field("state"),
		deliveryTime: field("delivery_time"),
	}
	if !validPincode(c.pincode) {
		return coverage{}, errors.Errorf("invalid pincode %q", c.pincode)
	}
	if v := field("cod"); v != "" {
		cod, err := strconv.ParseBool(v)
		if err != nil {
			return coverage{}, errors.Wrap(err, "cod")
		}
		c.cod = cod
	}
	if v := field("delivery_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return coverage{}, errors.Errorf("invalid delivery_days %q", v)
		}
		c.deliveryDays = days
	}
	if v := field("delivery_charge"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return coverage{}, errors.Errorf("invalid delivery_charge %q", v)
		}
		c.deliveryCharge = money.FromDecimal(d)
	}
	return c, nil
}

// validPincode accepts six digits not starting with zero.
func validPincode(s string) bool {
	if len(s) != 6 || s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
