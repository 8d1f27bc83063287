package apiserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/metrics"
	compilequery "github.com/auditor-project/auditor/internal/query"
	"github.com/auditor-project/auditor/internal/sqlstore"
	"github.com/auditor-project/auditor/pkg/domain"
	"github.com/auditor-project/auditor/pkg/query"
)

// EventPublisher is the optional ingest-notification hook (internal/events)
// the server calls after a record is durably inserted. A nil Events on
// Options disables it entirely.
type EventPublisher interface {
	PublishIngest(recordID string)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(r.Body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	if err := s.store.Insert(r.Context(), rec); err != nil {
		s.handleIngestError(w, err)
		return
	}

	if s.events != nil {
		s.events.PublishIngest(rec.RecordID.String())
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) bulkCreateRecords(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeValidationError(w, err)
		return
	}

	records := make([]domain.Record, len(raw))
	for i, item := range raw {
		rec, err := decodeRecord(strings.NewReader(string(item)))
		if err != nil {
			writeValidationError(w, err)
			return
		}
		records[i] = rec
	}

	if err := s.store.BulkInsert(r.Context(), records); err != nil {
		s.handleIngestError(w, err)
		return
	}

	if s.events != nil {
		for _, rec := range records {
			s.events.PublishIngest(rec.RecordID.String())
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(r.Body)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	if rec.StopTime == nil {
		writeValidationError(w, fmt.Errorf("stop_time is required to update record %s", rec.RecordID.String()))
		return
	}

	if err := s.store.Update(r.Context(), rec); err != nil {
		if errors.Is(err, sqlstore.ErrUnknownRecord) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Updating unknown record %s", rec.RecordID.String()))
			return
		}
		klog.ErrorS(err, "update failed", "record_id", rec.RecordID.String())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("record_id")

	plan, err := compilequery.Compile(query.Query{RecordID: &id})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.store.Scan(r.Context(), plan)
	if err != nil {
		klog.ErrorS(err, "get record scan failed", "record_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer rows.Close()

	if !rows.Next() {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rec, err := rows.Record()
	if err != nil {
		klog.ErrorS(err, "decode record failed", "record_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	data, err := rec.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Write(data)
}

// listRecords streams the matching records as a JSON array, one element at
// a time, flushing after each so the client's receive buffer is the only
// backpressure mechanism (§4.4, §5). A client disconnect mid-stream simply
// stops the loop; no partial-body cleanup is required beyond closing rows.
func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	q, err := query.Decode(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := compilequery.Compile(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.store.Scan(r.Context(), plan)
	if err != nil {
		klog.ErrorS(err, "list records scan failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer rows.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	io.WriteString(w, "[")
	count := 0
	for rows.Next() {
		rec, err := rows.Record()
		if err != nil {
			klog.ErrorS(err, "decode streamed record failed")
			return
		}
		data, err := rec.MarshalJSON()
		if err != nil {
			klog.ErrorS(err, "encode streamed record failed")
			return
		}
		if count > 0 {
			io.WriteString(w, ",")
		}
		w.Write(data)
		count++
		if flusher != nil {
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			klog.V(3).InfoS("client disconnected during stream", "records_sent", count)
			return
		default:
		}
	}
	io.WriteString(w, "]")

	if err := rows.Err(); err != nil {
		klog.ErrorS(err, "error iterating streamed rows")
	}
	metrics.ServerQueryResults.Observe(float64(count))
}

func (s *Server) handleIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlstore.ErrRecordExists) {
		if s.ignoreRecordExistsError {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, ErrRecordExists)
		return
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	klog.ErrorS(err, "ingest failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeRecord(body io.Reader) (domain.Record, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return domain.Record{}, err
	}
	var rec domain.Record
	if err := rec.UnmarshalJSON(data); err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	io.WriteString(w, message)
}
