package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"agriquant/ml"
)

var csvHeader = []string{
	"date", "year", "month", "state", "crop", "soil_type",
	"temperature", "rainfall", "humidity", "prev_year_price", "price",
}

const dateLayout = "2006-01-02"

// WriteCSV persists the training table, creating parent directories.
func WriteCSV(path string, obs []ml.Observation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range obs {
		record := []string{
			o.Date.Format(dateLayout),
			strconv.Itoa(o.Year),
			strconv.Itoa(o.Month),
			o.State,
			o.Crop,
			o.SoilType,
			formatFloat(o.Temperature),
			formatFloat(o.Rainfall),
			formatFloat(o.Humidity),
			formatFloat(o.PrevYearPrice),
			formatFloat(o.Price),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV loads a training table. A missing or malformed file is a hard
// error; there is no partial recovery.
func ReadCSV(path string) ([]ml.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read training table: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("training table %s has no data rows", path)
	}
	if len(records[0]) != len(csvHeader) {
		return nil, fmt.Errorf("training table %s: expected %d columns, got %d", path, len(csvHeader), len(records[0]))
	}

	obs := make([]ml.Observation, 0, len(records)-1)
	for i, record := range records[1:] {
		o, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("training table %s row %d: %w", path, i+2, err)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

func parseRecord(record []string) (ml.Observation, error) {
	var o ml.Observation
	var err error

	if o.Date, err = time.Parse(dateLayout, record[0]); err != nil {
		return o, fmt.Errorf("bad date %q: %w", record[0], err)
	}
	if o.Year, err = strconv.Atoi(record[1]); err != nil {
		return o, fmt.Errorf("bad year %q: %w", record[1], err)
	}
	if o.Month, err = strconv.Atoi(record[2]); err != nil {
		return o, fmt.Errorf("bad month %q: %w", record[2], err)
	}
	o.State = record[3]
	o.Crop = record[4]
	o.SoilType = record[5]

	floats := []*float64{&o.Temperature, &o.Rainfall, &o.Humidity, &o.PrevYearPrice, &o.Price}
	for j, dst := range floats {
		v, err := strconv.ParseFloat(record[6+j], 64)
		if err != nil {
			return o, fmt.Errorf("bad %s %q: %w", csvHeader[6+j], record[6+j], err)
		}
		*dst = v
	}
	return o, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
