package pipeline

type Request struct {
	Text string `json:"text"`
	Tid  string `json:"tid"`
}

// Pipeline runs every loaded profile on a request and sends back one JSON document
// keyed by profile name.
type Pipeline func(request Request) <-chan string
