package corpus

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"caoba.org/botcheck/types"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	_ "modernc.org/sqlite"
)

// Sink receives the corpus rows in build order. Close publishes the rows; Abort discards
// them and leaves any previously published corpus untouched.
type Sink interface {
	Write(row types.CorpusRow) error
	Close() error
	Abort() error
}

var csvHeader = []string{"user_id", "tweets", "is_human"}

// CSVSink writes the header, then one record per row with the tweets as a JSON array and
// the label as 0, 1 or an empty cell.
type CSVSink struct {
	writer *csv.Writer
	file   *os.File
	// target is renamed over by the temporary file on Close.
	target string
}

func NewCSVSink(w io.Writer) (*CSVSink, error) {
	sink := &CSVSink{writer: csv.NewWriter(w)}
	if err := sink.writer.Write(csvHeader); err != nil {
		return nil, err
	}
	return sink, nil
}

// CreateCSVSink writes the corpus next to filePath and replaces filePath on Close.
func CreateCSVSink(filePath string) (*CSVSink, error) {
	f, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filePath, err)
	}
	sink, err := NewCSVSink(f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	sink.file = f
	sink.target = filePath
	return sink, nil
}

func (sink *CSVSink) Write(row types.CorpusRow) error {
	tweets, err := encodeTweets(row.Tweets)
	if err != nil {
		return err
	}
	return sink.writer.Write([]string{row.UserID, tweets, row.Label.String()})
}

func (sink *CSVSink) Close() error {
	sink.writer.Flush()
	err := sink.writer.Error()
	if sink.file == nil {
		return err
	}
	if cerr := sink.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(sink.file.Name())
		return err
	}
	if err = os.Rename(sink.file.Name(), sink.target); err != nil {
		os.Remove(sink.file.Name())
		return fmt.Errorf("replacing %s: %w", sink.target, err)
	}
	return nil
}

func (sink *CSVSink) Abort() error {
	if sink.file == nil {
		return nil
	}
	sink.file.Close()
	return os.Remove(sink.file.Name())
}

// ReadCSV loads a table written by CSVSink.
func ReadCSV(r io.Reader) ([]types.CorpusRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header")
	}
	rows := make([]types.CorpusRow, 0, len(records)-1)
	for i, record := range records[1:] {
		row := types.CorpusRow{UserID: record[0], Label: types.LabelUnknown}
		if err := json.Unmarshal([]byte(record[1]), &row.Tweets); err != nil {
			return nil, fmt.Errorf("row %d: bad tweets: %w", i+1, err)
		}
		if record[2] != "" {
			label, err := strconv.Atoi(record[2])
			if err != nil {
				return nil, fmt.Errorf("row %d: bad label: %w", i+1, err)
			}
			row.Label = types.Label(label)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func LoadCSV(filePath string) ([]types.CorpusRow, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func encodeTweets(tweets []string) (string, error) {
	if tweets == nil {
		tweets = []string{}
	}
	buf, err := json.Marshal(tweets)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS corpus (
    user_id TEXT PRIMARY KEY,
    tweets TEXT,
    is_human INTEGER NULL
);
`

// SQLiteSink replaces the corpus table of a SQLite database inside one transaction,
// committed on Close and rolled back on Abort.
type SQLiteSink struct {
	db *sql.DB
	tx *sql.Tx
}

func OpenSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	tx, err := db.Begin()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM corpus`); err != nil {
		_ = tx.Rollback()
		_ = db.Close()
		return nil, fmt.Errorf("clear corpus: %w", err)
	}
	return &SQLiteSink{db: db, tx: tx}, nil
}

func (sink *SQLiteSink) Write(row types.CorpusRow) error {
	tweets, err := encodeTweets(row.Tweets)
	if err != nil {
		return err
	}
	var label sql.NullInt64
	if row.Label.Known() {
		label = sql.NullInt64{Int64: int64(row.Label), Valid: true}
	}
	if _, err := sink.tx.Exec(`INSERT INTO corpus(user_id, tweets, is_human) VALUES(?,?,?)`, row.UserID, tweets, label); err != nil {
		return fmt.Errorf("insert %s: %w", row.UserID, err)
	}
	return nil
}

func (sink *SQLiteSink) Close() error {
	defer sink.db.Close()
	if err := sink.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (sink *SQLiteSink) Abort() error {
	defer sink.db.Close()
	if err := sink.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

// LoadSQLite returns the corpus rows in insertion order.
func LoadSQLite(dbPath string) ([]types.CorpusRow, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT user_id, tweets, is_human FROM corpus ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}
	defer rows.Close()

	var out []types.CorpusRow
	for rows.Next() {
		var row types.CorpusRow
		var tweets string
		var label sql.NullInt64
		if err := rows.Scan(&row.UserID, &tweets, &label); err != nil {
			return nil, fmt.Errorf("scan corpus: %w", err)
		}
		if err := json.Unmarshal([]byte(tweets), &row.Tweets); err != nil {
			return nil, fmt.Errorf("decode tweets of %s: %w", row.UserID, err)
		}
		row.Label = types.LabelUnknown
		if label.Valid {
			row.Label = types.Label(label.Int64)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Uploader stores an object under key.
type Uploader interface {
	Upload(data string, key string) (*s3manager.UploadOutput, error)
}

// S3Sink buffers the CSV table and uploads it on Close. Abort uploads nothing.
type S3Sink struct {
	uploader Uploader
	key      string
	buf      *bytes.Buffer
	csv      *CSVSink
}

func NewS3Sink(uploader Uploader, key string) (*S3Sink, error) {
	buf := &bytes.Buffer{}
	csvSink, err := NewCSVSink(buf)
	if err != nil {
		return nil, err
	}
	return &S3Sink{uploader: uploader, key: key, buf: buf, csv: csvSink}, nil
}

func (sink *S3Sink) Write(row types.CorpusRow) error {
	return sink.csv.Write(row)
}

func (sink *S3Sink) Close() error {
	if err := sink.csv.Close(); err != nil {
		return err
	}
	if _, err := sink.uploader.Upload(sink.buf.String(), sink.key); err != nil {
		return fmt.Errorf("uploading %s: %w", sink.key, err)
	}
	return nil
}

func (sink *S3Sink) Abort() error {
	sink.buf.Reset()
	return nil
}
