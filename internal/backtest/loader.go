package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DataLoader loads historical price data for backtesting
type DataLoader struct{}

// NewDataLoader creates a new data loader
func NewDataLoader() *DataLoader {
	return &DataLoader{}
}

// LoadFromCSV loads market price history from a CSV file.
// Expected CSV format: market_id,timestamp,yes_price,no_price,volume
// timestamp can be in Unix timestamp (seconds or milliseconds) or RFC3339 format
func (dl *DataLoader) LoadFromCSV(filename string) ([]Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header if exists
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Check if first row is header (contains non-numeric data)
	if _, err := strconv.ParseFloat(header[2], 64); err != nil {
		// First row is header, continue to next row
	} else {
		// First row is data, seek back
		file.Seek(0, 0)
		reader = csv.NewReader(file)
	}

	byMarket := make(map[string][]PricePoint)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		if len(record) < 5 {
			continue // Skip invalid records
		}

		marketID := record[0]
		point, err := dl.parseCSVRecord(record)
		if err != nil {
			continue // Skip invalid records
		}

		byMarket[marketID] = append(byMarket[marketID], point)
	}

	ids := make([]string, 0, len(byMarket))
	for id := range byMarket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	series := make([]Series, 0, len(ids))
	for _, id := range ids {
		points := byMarket[id]
		sort.Slice(points, func(i, j int) bool {
			return points[i].Timestamp.Before(points[j].Timestamp)
		})
		series = append(series, Series{MarketID: id, Points: points})
	}

	return series, nil
}

// parseCSVRecord parses a single CSV record into a PricePoint
func (dl *DataLoader) parseCSVRecord(record []string) (PricePoint, error) {
	timestamp, err := dl.parseTimestamp(record[1])
	if err != nil {
		return PricePoint{}, err
	}

	yesPrice, err := decimal.NewFromString(record[2])
	if err != nil {
		return PricePoint{}, fmt.Errorf("invalid yes price: %w", err)
	}

	noPrice, err := decimal.NewFromString(record[3])
	if err != nil {
		return PricePoint{}, fmt.Errorf("invalid no price: %w", err)
	}

	volume, err := decimal.NewFromString(record[4])
	if err != nil {
		return PricePoint{}, fmt.Errorf("invalid volume: %w", err)
	}

	return PricePoint{
		Timestamp: timestamp,
		YesPrice:  yesPrice,
		NoPrice:   noPrice,
		Volume:    volume,
	}, nil
}

// parseTimestamp parses timestamp from string
// Supports Unix timestamp (seconds or milliseconds) and RFC3339 format
func (dl *DataLoader) parseTimestamp(s string) (time.Time, error) {
	// Try parsing as Unix timestamp
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Check if it's in milliseconds (13 digits) or seconds (10 digits)
		if ts > 10000000000 {
			// Milliseconds
			return time.Unix(ts/1000, (ts%1000)*1000000), nil
		}
		// Seconds
		return time.Unix(ts, 0), nil
	}

	// Try parsing as RFC3339
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	// Try parsing as common date formats
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// GenerateSampleSeries generates mean-reverting sample price history for
// the given markets, spaced hourly from startTime.
func (dl *DataLoader) GenerateSampleSeries(markets []string, startTime time.Time, pointsPerMarket int, seed int64) []Series {
	rng := rand.New(rand.NewSource(seed))
	series := make([]Series, 0, len(markets))

	for _, marketID := range markets {
		price := 0.3 + rng.Float64()*0.4
		anchor := price
		points := make([]PricePoint, 0, pointsPerMarket)
		currentTime := startTime

		for i := 0; i < pointsPerMarket; i++ {
			// Random walk pulled back toward its anchor
			price += (anchor-price)*0.1 + (rng.Float64()-0.5)*0.06
			if price < 0.01 {
				price = 0.01
			}
			if price > 0.99 {
				price = 0.99
			}

			yes := decimal.NewFromFloat(price).Round(4)
			points = append(points, PricePoint{
				Timestamp: currentTime,
				YesPrice:  yes,
				NoPrice:   decimal.NewFromInt(1).Sub(yes),
				Volume:    decimal.NewFromInt(int64(100 + rng.Intn(900))),
			})
			currentTime = currentTime.Add(1 * time.Hour)
		}

		series = append(series, Series{MarketID: marketID, Points: points})
	}

	return series
}
