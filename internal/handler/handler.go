// Package handler dispatches parsed queries against the record store,
// tariff plan and sandbox resolver, producing wire responses.
// Handler methods assume the caller already holds the store's lock for the
// appropriate mode (write-ops under Lock, read-ops under RLock) for the
// full duration of dispatch and reply serialization; the
// handler itself never locks or unlocks.
package handler

import (
	"fmt"
	"strings"

	"ispdb-server/internal/apperr"
	"ispdb-server/internal/model"
	"ispdb-server/internal/query"
	"ispdb-server/internal/sandbox"
	"ispdb-server/internal/store"
	"ispdb-server/internal/tariff"
	"ispdb-server/internal/wire"
)

// Handler holds the collaborators a dispatch needs.
type Handler struct {
	Store   *store.Store
	Plan    *tariff.Plan
	Sandbox *sandbox.Resolver
}

// New constructs a Handler.
func New(s *store.Store, plan *tariff.Plan, sb *sandbox.Resolver) *Handler {
	return &Handler{Store: s, Plan: plan, Sandbox: sb}
}

// IsWriteOp reports whether q's command mutates the store, determining
// which lock mode the session loop must acquire before calling Dispatch.
func IsWriteOp(t query.Type) bool {
	switch t {
	case query.Add, query.Delete, query.Edit, query.Load, query.Save:
		return true
	default:
		return false
	}
}

// Dispatch executes q and returns the response to send, or an apperr-kinded
// error if it failed. The caller maps the returned error's Kind to a status
// code via ErrorResponse.
func Dispatch(h *Handler, q query.Query) (wire.Response, error) {
	switch q.Type {
	case query.Add:
		return h.handleAdd(q)
	case query.Select:
		return h.handleSelect(q)
	case query.Delete:
		return h.handleDelete(q)
	case query.Edit:
		return h.handleEdit(q)
	case query.CalculateCharges:
		return h.handleCalculateCharges(q)
	case query.PrintAll:
		return h.handlePrintAll()
	case query.Load:
		return h.handleLoad(q)
	case query.Save:
		return h.handleSave(q)
	case query.Help:
		return h.handleHelp()
	case query.Exit:
		return wire.SimpleMessage("goodbye"), nil
	default:
		return wire.Response{}, apperr.BadRequest(fmt.Sprintf("unrecognized or malformed query: %q", q.Raw))
	}
}

// ErrorResponse maps an apperr-kinded error to the wire status/payload it
// belongs in.
func ErrorResponse(err error) wire.Response {
	msg := err.Error()
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return wire.ErrorResponse(wire.StatusNotFound, msg)
	case apperr.KindServerError:
		return wire.ErrorResponse(wire.StatusServerError, msg)
	default:
		return wire.ErrorResponse(wire.StatusBadRequest, msg)
	}
}

func toStoreCriteria(c query.Criteria) store.Criteria {
	return store.Criteria{
		Name: c.Name, UseName: c.HasName,
		IP: c.IP, UseIP: c.HasIP,
		Date: c.Date, UseDate: c.HasDate,
	}
}

func (h *Handler) handleAdd(q query.Query) (wire.Response, error) {
	rec, err := model.NewRecord(q.Fields.Name, q.Fields.IP, q.Fields.Date, q.Fields.TrafficIn, q.Fields.TrafficOut)
	if err != nil {
		return wire.Response{}, apperr.BadRequestf("invalid record", err)
	}
	h.Store.Add(rec)
	return wire.SimpleMessage(fmt.Sprintf("record added for %q", rec.Name)), nil
}

func (h *Handler) handleSelect(q query.Query) (wire.Response, error) {
	indices := h.Store.FindByCriteria(toStoreCriteria(q.Criteria))
	records := h.Store.Records(indices)
	return wire.RecordsResponse(fmt.Sprintf("%d matching record(s)", len(records)), records), nil
}

func (h *Handler) handleDelete(q query.Query) (wire.Response, error) {
	indices := h.Store.FindByCriteria(toStoreCriteria(q.Criteria))
	removed := h.Store.DeleteByIndices(indices)
	// No match is not an error: an empty selection deleted zero records,
	// unlike EDIT below.
	return wire.SimpleMessage(fmt.Sprintf("%d record(s) deleted", removed)), nil
}

func (h *Handler) handleEdit(q query.Query) (wire.Response, error) {
	indices := h.Store.FindByCriteria(toStoreCriteria(q.Criteria))
	if len(indices) == 0 {
		return wire.Response{}, apperr.NotFound("no record matches the given criteria")
	}

	idx := indices[0]
	current, err := h.Store.Get(idx)
	if err != nil {
		return wire.Response{}, apperr.ServerError("internal lookup failure", err)
	}

	updated := current
	if q.Fields.HasName {
		updated.Name = q.Fields.Name
	}
	if q.Fields.HasIP {
		updated.IP = q.Fields.IP
	}
	if q.Fields.HasDate {
		updated.Date = q.Fields.Date
	}
	if q.Fields.HasTrafficIn {
		var in [model.HoursInDay]float64
		copy(in[:], q.Fields.TrafficIn)
		updated.TrafficIn = in
	}
	if q.Fields.HasTrafficOut {
		var out [model.HoursInDay]float64
		copy(out[:], q.Fields.TrafficOut)
		updated.TrafficOut = out
	}

	if err := h.Store.Edit(idx, updated); err != nil {
		return wire.Response{}, apperr.ServerError("internal update failure", err)
	}

	message := "record updated"
	if len(indices) > 1 {
		message = fmt.Sprintf("warning: %d records matched, updated index %d; record updated", len(indices), idx)
	} else if updated.Equal(current) {
		message = "record unchanged (new values equal the old ones)"
	}
	return wire.SimpleMessage(message), nil
}

func (h *Handler) handleCalculateCharges(q query.Query) (wire.Response, error) {
	if q.StartDate.After(q.EndDate) {
		return wire.Response{}, apperr.BadRequest("START_DATE must not be after END_DATE")
	}

	indices := h.Store.FindByCriteria(toStoreCriteria(q.Criteria))
	records := h.Store.Records(indices)

	var b strings.Builder
	var grandTotal float64
	var charged int
	for _, r := range records {
		if r.Date.Before(q.StartDate) || r.Date.After(q.EndDate) {
			continue
		}
		charge := store.CalculateCharge(r, h.Plan, q.StartDate, q.EndDate)
		grandTotal += charge
		charged++
		fmt.Fprintf(&b, "%s (%s): %.2f\n", r.Name, r.IP.String(), charge)
	}
	fmt.Fprintf(&b, "TOTAL: %.2f", grandTotal)

	return wire.Response{
		Status:      wire.StatusOK,
		Message:     fmt.Sprintf("charges for %d record(s) between %s and %s", charged, q.StartDate, q.EndDate),
		PayloadType: wire.PayloadSimpleMessage,
		Body:        []byte(b.String()),
	}, nil
}

func (h *Handler) handlePrintAll() (wire.Response, error) {
	records := h.Store.All()
	return wire.RecordsResponse(fmt.Sprintf("%d record(s) total", len(records)), records), nil
}

func (h *Handler) handleLoad(q query.Query) (wire.Response, error) {
	path, err := h.Sandbox.Resolve(q.Filename)
	if err != nil {
		return wire.Response{}, apperr.BadRequestf("invalid filename", err)
	}
	result, err := h.Store.LoadFile(path)
	if err != nil {
		return wire.Response{}, apperr.ServerError(fmt.Sprintf("failed to load %q", q.Filename), err)
	}
	msg := fmt.Sprintf("loaded %d record(s) from %q", result.RecordsLoaded, q.Filename)
	if result.RecordsSkipped > 0 {
		msg = fmt.Sprintf("%s (%d record(s) skipped due to malformed or truncated data)", msg, result.RecordsSkipped)
	}
	return wire.SimpleMessage(msg), nil
}

func (h *Handler) handleSave(q query.Query) (wire.Response, error) {
	var path string
	if q.HasFilename {
		resolved, err := h.Sandbox.Resolve(q.Filename)
		if err != nil {
			return wire.Response{}, apperr.BadRequestf("invalid filename", err)
		}
		path = resolved
	} else {
		path = h.Store.CurrentFile()
		if path == "" {
			return wire.Response{}, apperr.BadRequest("SAVE with no filename requires a prior LOAD or SAVE in this session")
		}
	}
	if err := h.Store.SaveFile(path); err != nil {
		return wire.Response{}, apperr.ServerError(fmt.Sprintf("failed to save %q", q.Filename), err)
	}
	return wire.SimpleMessage(fmt.Sprintf("saved %d record(s)", len(h.Store.All()))), nil
}

func (h *Handler) handleHelp() (wire.Response, error) {
	return wire.SimpleMessage(helpText), nil
}

const helpText = `Supported commands:
  ADD FIO "<name>" IP <d.d.d.d> DATE <DD.MM.YYYY> [TRAFFIC_IN <24 values>] [TRAFFIC_OUT <24 values>] [END]
  SELECT [FIO "<name>"] [IP <d.d.d.d>] [DATE <DD.MM.YYYY>] [END]
  DELETE [FIO "<name>"] [IP <d.d.d.d>] [DATE <DD.MM.YYYY>] [END]
  EDIT [FIO "<name>"] [IP <d.d.d.d>] [DATE <DD.MM.YYYY>] SET <fields to change> [END]
  CALCULATE_CHARGES [criteria] START_DATE <DD.MM.YYYY> END_DATE <DD.MM.YYYY> [END]
  PRINT_ALL
  LOAD <filename>
  SAVE [filename]
  HELP
  EXIT`
