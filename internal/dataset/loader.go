package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

// Table is an immutable in-memory view of a delimited test set: numeric
// feature columns followed by a single trailing binary label column.
type Table struct {
	Header []string
	Rows   [][]float64
}

// Load reads a CSV file into a Table. The first row is treated as a header.
// Malformed CSV or non-numeric cells map to ErrParse, a missing file to
// ErrNotFound and any other read failure to ErrIO.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Errorf("dataset file not found: %s", path)
			return nil, errors.WrapKind(err, errors.ErrNotFound, "load dataset "+path)
		}
		logger.Errorf("failed to open dataset %s: %v", path, err)
		return nil, errors.WrapKind(err, errors.ErrIO, "load dataset "+path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		logger.Errorf("failed to parse dataset %s: %v", path, err)
		return nil, errors.WrapKind(err, errors.ErrParse, "parse dataset "+path)
	}
	if len(records) == 0 {
		logger.Errorf("dataset %s is empty", path)
		return nil, errors.Wrap(errors.ErrParse, "dataset "+path+" has no header row")
	}

	header := records[0]
	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				logger.Errorf("dataset %s row %d column %d is not numeric: %q", path, i+2, j+1, cell)
				return nil, errors.WrapKind(err, errors.ErrParse, "parse dataset "+path)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}

	logger.Infof("dataset loaded from %s (%d rows, %d columns)", path, len(rows), len(header))
	return &Table{Header: header, Rows: rows}, nil
}

// Split separates the table into the feature matrix (all columns but the
// last) and the label vector (last column). No schema validation is done
// beyond the column split; the label convention is enforced by the evaluator.
func (t *Table) Split() (features [][]float64, labels []int) {
	features = make([][]float64, len(t.Rows))
	labels = make([]int, len(t.Rows))

	for i, row := range t.Rows {
		last := len(row) - 1
		features[i] = row[:last]
		labels[i] = int(row[last])
	}
	return features, labels
}
