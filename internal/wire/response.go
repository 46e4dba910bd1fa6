package wire

import (
	"bytes"
	"fmt"
	"net"

	"ispdb-server/internal/model"
)

// Status codes for the response header's STATUS field.
const (
	StatusOK          = 200
	StatusMultiBegin  = 201
	StatusMultiChunk  = 202
	StatusMultiEnd    = 203
	StatusBadRequest  = 400
	StatusNotFound    = 404
	StatusServerError = 500
)

// Payload types for the response header's PAYLOAD_TYPE field.
const (
	PayloadRecordsList   = "PROVIDER_RECORDS_LIST"
	PayloadSimpleMessage = "SIMPLE_MESSAGE"
	PayloadErrorInfo     = "ERROR_INFO"
	PayloadNone          = "NONE"
)

// Header keys.
const (
	headerStatus           = "STATUS"
	headerMessage          = "MESSAGE"
	headerRecordsInPayload = "RECORDS_IN_PAYLOAD"
	headerTotalRecords     = "TOTAL_RECORDS"
	headerPayloadType      = "PAYLOAD_TYPE"
	dataMarker             = "--DATA_BEGIN--"
)

// ChunkingThreshold and ChunkSize control when and how a record-list
// response is split across multiple frames.
const (
	ChunkingThreshold = 60
	ChunkSize         = 50
)

// Response is the command handler's output: a status, message,
// payload type and either a raw-text body or a record list.
type Response struct {
	Status      int
	Message     string
	PayloadType string
	Body        []byte         // used when PayloadType is SimpleMessage or ErrorInfo
	Records     []model.Record // used when PayloadType is RecordsList
}

// SimpleMessage builds a single-frame 200/SIMPLE_MESSAGE response.
func SimpleMessage(message string) Response {
	return Response{Status: StatusOK, Message: message, PayloadType: PayloadSimpleMessage, Body: []byte(message)}
}

// ErrorResponse builds a single-frame error response for the given status.
func ErrorResponse(status int, message string) Response {
	return Response{Status: status, Message: message, PayloadType: PayloadErrorInfo, Body: []byte(message)}
}

// RecordsResponse builds a (possibly chunked, per the threshold) response
// carrying a record list.
func RecordsResponse(message string, records []model.Record) Response {
	return Response{Status: StatusOK, Message: message, PayloadType: PayloadRecordsList, Records: records}
}

// Send serializes resp onto conn as one or more frames. A
// record-list response with fewer than ChunkingThreshold records goes out
// as a single 200 frame; at or above the threshold it is split into a 201
// MULTI_BEGIN frame, zero or more 202 MULTI_CHUNK frames, and a 203
// MULTI_END frame.
func Send(conn net.Conn, resp Response) error {
	if resp.PayloadType != PayloadRecordsList {
		body := resp.Body
		if body == nil {
			body = []byte{}
		}
		return WriteFrame(conn, buildFrame(resp.Status, resp.Message, resp.PayloadType, uint32(len(resp.Records)), uint32(len(resp.Records)), body))
	}

	total := len(resp.Records)
	if total < ChunkingThreshold {
		return WriteFrame(conn, buildFrame(StatusOK, resp.Message, PayloadRecordsList, uint32(total), uint32(total), recordsBody(resp.Records)))
	}

	sent := 0
	first := true
	for sent < total {
		end := sent + ChunkSize
		if end > total {
			end = total
		}
		chunk := resp.Records[sent:end]
		status := StatusMultiChunk
		msg := resp.Message
		if first {
			status = StatusMultiBegin
		}
		if err := WriteFrame(conn, buildFrame(status, msg, PayloadRecordsList, uint32(len(chunk)), uint32(total), recordsBody(chunk))); err != nil {
			return err
		}
		sent = end
		first = false
	}

	return WriteFrame(conn, buildFrame(StatusMultiEnd, resp.Message, PayloadNone, 0, uint32(total), nil))
}

func recordsBody(records []model.Record) []byte {
	var buf bytes.Buffer
	for i, r := range records {
		if i > 0 {
			buf.WriteByte('\n')
		}
		r.WriteTo(&buf) //nolint:errcheck // bytes.Buffer never errors
	}
	return buf.Bytes()
}

func buildFrame(status int, message, payloadType string, recordsInPayload, totalRecords uint32, body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %d\n", headerStatus, status)
	fmt.Fprintf(&buf, "%s: %s\n", headerMessage, message)
	fmt.Fprintf(&buf, "%s: %d\n", headerRecordsInPayload, recordsInPayload)
	fmt.Fprintf(&buf, "%s: %d\n", headerTotalRecords, totalRecords)
	fmt.Fprintf(&buf, "%s: %s\n", headerPayloadType, payloadType)
	buf.WriteString(dataMarker)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}
