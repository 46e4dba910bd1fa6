package wire

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"

	"ispdb-server/internal/model"
)

// readOneFrame reads and parses a single frame's header block, returning the
// parsed header fields and the raw body bytes following the data marker.
func readOneFrame(t *testing.T, conn net.Conn) (status int, recordsInPayload, totalRecords uint32, payloadType string, body []byte) {
	t.Helper()
	payload, err := ReadFrame(conn, 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	scanner := bufio.NewScanner(bufio.NewReader(strings.NewReader(string(payload))))
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if line == dataMarker {
			break
		}
	}

	headers := map[string]string{}
	for _, line := range lines {
		if line == dataMarker {
			continue
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) == 2 {
			headers[parts[0]] = parts[1]
		}
	}

	status, _ = strconv.Atoi(headers[headerStatus])
	rip, _ := strconv.Atoi(headers[headerRecordsInPayload])
	tr, _ := strconv.Atoi(headers[headerTotalRecords])

	headerLen := 0
	for _, line := range lines {
		headerLen += len(line) + 1
	}
	return status, uint32(rip), uint32(tr), headers[headerPayloadType], payload[headerLen:]
}

func makeRecords(n int) []model.Record {
	ip, _ := model.ParseIPAddress("10.0.0.1")
	date, _ := model.ParseDate("01.01.2024")
	zeros := make([]float64, model.HoursInDay)
	records := make([]model.Record, n)
	for i := 0; i < n; i++ {
		r, _ := model.NewRecord(fmt.Sprintf("user%d", i), ip, date, zeros, zeros)
		records[i] = r
	}
	return records
}

func TestSendSimpleMessage(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		Send(client, SimpleMessage("ok"))
	}()

	status, _, _, payloadType, _ := readOneFrame(t, server)
	if status != StatusOK {
		t.Errorf("status = %d, want %d", status, StatusOK)
	}
	if payloadType != PayloadSimpleMessage {
		t.Errorf("payload type = %q, want %q", payloadType, PayloadSimpleMessage)
	}
}

func TestSendErrorResponse(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		Send(client, ErrorResponse(StatusNotFound, "no match"))
	}()

	status, _, _, payloadType, body := readOneFrame(t, server)
	if status != StatusNotFound {
		t.Errorf("status = %d, want %d", status, StatusNotFound)
	}
	if payloadType != PayloadErrorInfo {
		t.Errorf("payload type = %q, want %q", payloadType, PayloadErrorInfo)
	}
	if string(body) != "no match" {
		t.Errorf("body = %q, want %q", body, "no match")
	}
}

func TestSendRecordsResponseBelowThresholdIsSingleFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	records := makeRecords(ChunkingThreshold - 1)
	go func() {
		Send(client, RecordsResponse("found", records))
	}()

	status, rip, total, payloadType, _ := readOneFrame(t, server)
	if status != StatusOK {
		t.Errorf("status = %d, want %d", status, StatusOK)
	}
	if payloadType != PayloadRecordsList {
		t.Errorf("payload type = %q, want %q", payloadType, PayloadRecordsList)
	}
	if int(rip) != len(records) || int(total) != len(records) {
		t.Errorf("records_in_payload=%d total_records=%d, want both %d", rip, total, len(records))
	}
}

func TestSendRecordsResponseAtThresholdIsChunked(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	records := makeRecords(ChunkingThreshold)
	go func() {
		Send(client, RecordsResponse("found", records))
	}()

	status, firstRIP, total, _, _ := readOneFrame(t, server)
	if status != StatusMultiBegin {
		t.Fatalf("first frame status = %d, want %d (MULTI_BEGIN)", status, StatusMultiBegin)
	}
	if int(total) != len(records) {
		t.Errorf("total_records = %d, want %d", total, len(records))
	}

	chunkCount := 1
	seen := int(firstRIP)
	for {
		status, rip, _, payloadType, _ := readOneFrame(t, server)
		if status == StatusMultiEnd {
			if payloadType != PayloadNone {
				t.Errorf("final frame payload type = %q, want %q", payloadType, PayloadNone)
			}
			break
		}
		if status != StatusMultiChunk {
			t.Fatalf("unexpected mid-sequence status %d", status)
		}
		chunkCount++
		seen += int(rip)
	}

	if seen != len(records) {
		t.Errorf("total records seen across chunks = %d, want %d", seen, len(records))
	}
	if chunkCount < 2 {
		t.Errorf("expected at least one MULTI_CHUNK frame")
	}
}
