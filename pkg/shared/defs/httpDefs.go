package defs

type PingBody struct {
	Message string `json:"message"`
}

type PingReply struct {
	Reply string `json:"reply"`
}

type ExtractBody struct {
	Url    string   `json:"url"`
	Text   string   `json:"text"`
	Fields []string `json:"fields"`
}

type ExtractReply struct {
	ExtractedJson string `json:"extractedJson"`
	ErrorMessage  string `json:"errorMessage"`
}

type RecordBody struct {
	Url      string `json:"url"`
	DataJson string `json:"dataJson"`
}

type RecordItem struct {
	Url      string `json:"url"`
	DataJson string `json:"dataJson"`
	SavedAt  int64  `json:"savedAt"`
}

type SaveReply struct {
	Success bool `json:"success"`
}

type ErrorReply struct {
	Msg  string `json:"msg"`
	Kind string `json:"kind,omitempty"`
}

type WorkerStatus struct {
	State     string `json:"state"`
	ProcessId int    `json:"processId,omitempty"`
	ExitCode  *int   `json:"exitCode,omitempty"`
}

type BackendStatus struct {
	InstanceId string       `json:"instanceId"`
	Gate       string       `json:"gate"`
	Address    string       `json:"address,omitempty"`
	Error      string       `json:"error,omitempty"`
	Worker     WorkerStatus `json:"worker"`
	Clients    int          `json:"clients"`
}
