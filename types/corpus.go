package types

import "strconv"

const LabelNameBot = "bot"

// Label is the is_human column of a corpus row.
type Label int8

const (
	LabelUnknown Label = -1
	LabelBot     Label = 0
	LabelHuman   Label = 1
)

// LabelFromName maps a truth file label to a Label. Anything but "bot" is human.
func LabelFromName(name string) Label {
	if name == LabelNameBot {
		return LabelBot
	}
	return LabelHuman
}

func (l Label) Known() bool {
	return l == LabelBot || l == LabelHuman
}

// String renders the CSV cell: "0", "1", or empty for an unknown label.
func (l Label) String() string {
	if !l.Known() {
		return ""
	}
	return strconv.Itoa(int(l))
}

// TruthRecord is one split line of the truth file, usually [user_id, label].
type TruthRecord []string

func (record TruthRecord) Contains(userID string) bool {
	for _, field := range record {
		if field == userID {
			return true
		}
	}
	return false
}

func (record TruthRecord) Label() Label {
	if len(record) < 2 {
		return LabelHuman
	}
	return LabelFromName(record[1])
}

type CorpusRow struct {
	UserID string
	Tweets []string
	Label  Label
}
