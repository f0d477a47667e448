package api

import (
	"net/http"
	"strconv"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/market"
	"stock-trading-sim-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type adminHomeResponse struct {
	Users    []models.Account `json:"users"`
	Listings []models.Listing `json:"listings"`
}

type createStockRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Ticker      string          `json:"ticker"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// hoursView renders a trading window with HH:MM clock times.
type hoursView struct {
	Day   string `json:"day"`
	Open  string `json:"start_time"`
	Close string `json:"end_time"`
}

type marketHoursResponse struct {
	Hours    []hoursView      `json:"hours"`
	Holidays []models.Holiday `json:"holidays"`
}

// changeHoursRequest either sets or clears a weekday window, or closes the
// market for one date when CloseMarket is set.
type changeHoursRequest struct {
	Day          string `json:"day"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Clear        bool   `json:"clear"`
	CloseMarket  bool   `json:"close_market"`
	SelectedDate string `json:"selected_date"`
	CloseReason  string `json:"close_reason"`
}

type closureRequest struct {
	HolidayDate string `json:"holiday_date"`
	Reason      string `json:"reason"`
}

type updateUserRequest struct {
	FullName *string `json:"full_name"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (s *Server) adminHome(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.ListUsers(r.Context(), principal(r))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	listings, err := s.catalog.List(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, adminHomeResponse{Users: users, Listings: listings})
}

func (s *Server) createStock(w http.ResponseWriter, r *http.Request) {
	var req createStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	listing, err := s.catalog.CreateListing(r.Context(), principal(r), catalog.CreateListingRequest{
		Name:        req.Name,
		Description: req.Description,
		Ticker:      req.Ticker,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, listing)
}

func (s *Server) marketHours(w http.ResponseWriter, r *http.Request) {
	hours, err := s.calendar.ListHours(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	holidays, err := s.calendar.ListHolidays(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	views := make([]hoursView, 0, len(hours))
	for _, h := range hours {
		views = append(views, viewOf(h))
	}
	WriteJSON(w, http.StatusOK, marketHoursResponse{Hours: views, Holidays: holidays})
}

func (s *Server) changeMarketHours(w http.ResponseWriter, r *http.Request) {
	var req changeHoursRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	ctx := r.Context()
	actor := principal(r)

	if req.CloseMarket {
		s.closeDate(w, r, actor, req.SelectedDate, req.CloseReason)
		return
	}

	day, err := market.ParseWeekday(req.Day)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	if req.Clear {
		if err := s.calendar.ClearHours(ctx, actor, day); err != nil {
			writeServiceError(w, s.logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "market closed on " + day.String()})
		return
	}

	if req.StartTime == "" || req.EndTime == "" {
		writeServiceError(w, s.logger, apperr.Invalid("empty fields, day, start time and end time are required"))
		return
	}
	open, err := market.ParseClock(req.StartTime)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	closing, err := market.ParseClock(req.EndTime)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	hours, err := s.calendar.SetHours(ctx, actor, day, open, closing)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, viewOf(hours))
}

func (s *Server) marketSchedule(w http.ResponseWriter, r *http.Request) {
	holidays, err := s.calendar.ListHolidays(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, holidays)
}

func (s *Server) addClosure(w http.ResponseWriter, r *http.Request) {
	var req closureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	s.closeDate(w, r, principal(r), req.HolidayDate, req.Reason)
}

func (s *Server) closeDate(w http.ResponseWriter, r *http.Request, actor accounts.Principal, rawDate, reason string) {
	if rawDate == "" {
		writeServiceError(w, s.logger, apperr.Invalid("please enter a date"))
		return
	}
	date, err := market.ParseDate(rawDate)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	holiday, err := s.calendar.AddHoliday(r.Context(), actor, date, reason)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, holiday)
}

func (s *Server) removeClosure(w http.ResponseWriter, r *http.Request) {
	date, err := market.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	if err := s.calendar.RemoveHoliday(r.Context(), principal(r), date); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) openAllMarkets(w http.ResponseWriter, r *http.Request) {
	n, err := s.calendar.ClearHolidays(r.Context(), principal(r))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

func (s *Server) drift(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.pricing.Tick(r.Context())
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, quotes)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	account, err := s.accounts.UpdateUser(r.Context(), principal(r), id, accounts.UpdateUserRequest{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	if err := s.accounts.DeleteUser(r.Context(), principal(r), id); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid("invalid account id %q", raw)
	}
	return uint(id), nil
}

func viewOf(h market.Hours) hoursView {
	return hoursView{
		Day:   h.Weekday.String(),
		Open:  market.FormatClock(h.Open),
		Close: market.FormatClock(h.Close),
	}
}
