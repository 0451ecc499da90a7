package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/synaptica-ai/cardiorisk/pkg/features"
)

// ClinicalColumns is the positional layout of the UCI heart-disease file;
// the last column is the 0-4 severity target.
var ClinicalColumns = []string{
	features.FieldAge, features.FieldSex, features.FieldChestPain, features.FieldRestingBP,
	features.FieldCholesterol, features.FieldFastingSugar, features.FieldRestECG,
	features.FieldMaxHeartRate, features.FieldAngina, features.FieldOldpeak, features.FieldSlope,
	features.FieldVessels, features.FieldThal, "target",
}

// ClinicalSet is the parsed static dataset.
type ClinicalSet struct {
	Records []features.Record
	Labels  []string
	Dropped int
}

// LoadClinicalCSV reads the dataset at path.
func LoadClinicalCSV(path string) (*ClinicalSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clinical dataset: %w", err)
	}
	defer f.Close()
	return ReadClinicalCSV(f)
}

// ReadClinicalCSV parses headerless or headed UCI rows. "?" marks a missing
// value and drops the row, as does an unparseable cell.
func ReadClinicalCSV(r io.Reader) (*ClinicalSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	set := &ClinicalSet{}
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read clinical dataset: %w", err)
		}
		line++
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), features.FieldAge) {
			continue
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) != len(ClinicalColumns) {
			return nil, fmt.Errorf("clinical dataset line %d: %d columns, want %d", line, len(row), len(ClinicalColumns))
		}

		values, ok := parseRow(row)
		if !ok {
			set.Dropped++
			continue
		}
		rec := features.Record{Numeric: make(map[string]float64, len(ClinicalColumns)-1)}
		for i, name := range ClinicalColumns[:len(ClinicalColumns)-1] {
			rec.Numeric[name] = values[i]
		}
		set.Records = append(set.Records, rec)
		set.Labels = append(set.Labels, strconv.Itoa(int(values[len(values)-1])))
	}
	if len(set.Records) == 0 {
		return nil, fmt.Errorf("clinical dataset has no complete rows")
	}
	return set, nil
}

func parseRow(row []string) ([]float64, bool) {
	values := make([]float64, len(row))
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" || cell == "?" {
			return nil, false
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
