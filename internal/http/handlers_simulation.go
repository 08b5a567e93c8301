package http

import (
	"net/http"

	"caixinhas/internal/log"
	"caixinhas/internal/projection"
)

// handleLumpSum projects a single deposit: {initial_value, months} -> {cdb, poupanca}.
func (s *Server) handleLumpSum(w http.ResponseWriter, r *http.Request) {
	s.simulate(w, r, projection.LumpSum)
}

// handleRecurring projects monthly contributions towards a goal:
// {initial_value, months, accumulated} -> {cdb, poupanca, monthly_contribution}.
func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	s.simulate(w, r, projection.RecurringMonthly)
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request, mode projection.Mode) {
	var req simulationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpParse, err)
		return
	}
	in, err := req.input(mode)
	if err != nil {
		s.writeError(w, r, log.OpValidate, err)
		return
	}

	res, rates, err := s.simulator.Simulate(r.Context(), in)
	if err != nil {
		s.writeError(w, r, log.OpSimulate, err)
		return
	}
	s.appMetrics.simulations.Add(1)

	fields := log.NewFields().
		WithSimulation(in.InitialValue.String(), in.Months, string(mode)).
		WithOperation(log.OpSimulate)
	fields[log.FieldRatesSource] = rates.Source
	log.FromContext(r.Context()).DebugContext(r.Context(), "Simulation served", fields.ToSlice()...)

	NewJSONResponse().Body(newSimulationResponse(res.Rounded(), mode == projection.RecurringMonthly)).Write(w)
}

// handleRates returns the current reference rates and the monthly yields derived from them.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	rates, monthly, err := s.simulator.CurrentRates(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newRatesResponse(rates, monthly)).Write(w)
}
