package kernel

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// The kernel gateway multiplexes all kernel channels over a single
// websocket; every frame is one JSON message with a channel tag.
const (
	channelShell = "shell"
	channelIOPub = "iopub"
)

const (
	msgExecuteRequest  = "execute_request"
	msgExecuteReply    = "execute_reply"
	msgKernelInfoReq   = "kernel_info_request"
	msgKernelInfoReply = "kernel_info_reply"
	msgStream          = "stream"
	msgDisplayData     = "display_data"
	msgExecuteResult   = "execute_result"
	msgError           = "error"
	msgStatus          = "status"

	protocolVersion = "5.3"
)

// header identifies a protocol message and, via parent_header, the
// request it replies to.
type header struct {
	MsgID    string `json:"msg_id"`
	MsgType  string `json:"msg_type"`
	Username string `json:"username"`
	Session  string `json:"session"`
	Date     string `json:"date"`
	Version  string `json:"version"`
}

// message is the envelope for every frame on the channels websocket.
type message struct {
	Header       header          `json:"header"`
	ParentHeader header          `json:"parent_header"`
	Metadata     map[string]any  `json:"metadata"`
	Content      json.RawMessage `json:"content"`
	Channel      string          `json:"channel"`
}

// outMessage is the sendable counterpart of message with typed content.
type outMessage struct {
	Header       header         `json:"header"`
	ParentHeader struct{}       `json:"parent_header"`
	Metadata     map[string]any `json:"metadata"`
	Content      any            `json:"content"`
	Channel      string         `json:"channel"`
}

func newMessage(session, msgType string, content any) outMessage {
	return outMessage{
		Header: header{
			MsgID:    uuid.New().String(),
			MsgType:  msgType,
			Username: "kernelbox",
			Session:  session,
			Date:     time.Now().UTC().Format(time.RFC3339),
			Version:  protocolVersion,
		},
		Metadata: map[string]any{},
		Content:  content,
		Channel:  channelShell,
	}
}

// executeRequestContent is the payload of an execute_request.
type executeRequestContent struct {
	Code            string         `json:"code"`
	Silent          bool           `json:"silent"`
	StoreHistory    bool           `json:"store_history"`
	UserExpressions map[string]any `json:"user_expressions"`
	AllowStdin      bool           `json:"allow_stdin"`
	StopOnError     bool           `json:"stop_on_error"`
}

// streamContent is the payload of a stream event (stdout/stderr chunk).
type streamContent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// displayContent is the payload of display_data and execute_result
// events; Data maps mime types to payloads.
type displayContent struct {
	Data map[string]json.RawMessage `json:"data"`
}

// errorContent is the payload of error events and failed execute
// replies.
type errorContent struct {
	Name      string   `json:"ename"`
	Value     string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// statusContent is the payload of kernel status events.
type statusContent struct {
	ExecutionState string `json:"execution_state"`
}

// replyContent is the payload of an execute_reply.
type replyContent struct {
	Status    string   `json:"status"`
	Name      string   `json:"ename"`
	Value     string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}
