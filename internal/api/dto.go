package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

type timeRangeDTO struct {
	Start string `json:"start" validate:"required,max=8"`
	End   string `json:"end" validate:"required,max=8"`
}

type periodDTO struct {
	Type         string         `json:"period_type" validate:"omitempty,oneof=range specific_days calendar_month sliding_month"`
	StartDate    string         `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string         `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	SelectedDays []string       `json:"selected_days" validate:"omitempty,dive,datetime=2006-01-02"`
	StartTime    string         `json:"start_time" validate:"max=8"`
	EndTime      string         `json:"end_time" validate:"max=8"`
	HourlySlots  []timeRangeDTO `json:"hourly_slots" validate:"omitempty,dive"`
}

type resourceDTO struct {
	RoomID       *int64  `json:"room_id" validate:"omitempty,gt=0"`
	WorkspaceIDs []int64 `json:"workspace_ids" validate:"omitempty,dive,gt=0"`
}

type bookingRequestDTO struct {
	RentalType       string      `json:"rental_type" validate:"required"`
	Resource         resourceDTO `json:"resource"`
	ClientID         int64       `json:"client_id" validate:"required,gt=0"`
	Period           periodDTO   `json:"period"`
	AdjustedPrice    *float64    `json:"adjusted_price" validate:"omitempty,gte=0"`
	AdjustmentReason string      `json:"adjustment_reason" validate:"max=500"`
	PaymentType      string      `json:"payment_type" validate:"omitempty,oneof=prepayment postpayment"`
	Comment          string      `json:"comment" validate:"max=2000"`
	Submit           bool        `json:"submit"`
	IgnoreConflicts  bool        `json:"ignore_conflicts"`
}

type availabilityRequestDTO struct {
	RentalType       string      `json:"rental_type" validate:"required"`
	Resource         resourceDTO `json:"resource"`
	Period           periodDTO   `json:"period"`
	ExcludeBookingID int64       `json:"exclude_booking_id" validate:"gte=0"`
	TeacherID        *int64      `json:"teacher_id" validate:"omitempty,gt=0"`
}

type extendRequestDTO struct {
	StartDate       string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate         string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	SelectedDays    []string `json:"selected_days" validate:"omitempty,dive,datetime=2006-01-02"`
	IgnoreConflicts bool     `json:"ignore_conflicts"`
}

type idsRequestDTO struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

type paymentRequestDTO struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type occupancyRequestDTO struct {
	RoomID int64    `json:"room_id" validate:"required,gt=0"`
	Dates  []string `json:"dates" validate:"required,min=1,dive,datetime=2006-01-02"`
}

// validateDTO runs the struct tags and reports failures as validation errors.
func validateDTO(v any) error {
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return domain.Validationf("%s", strings.Join(msgs, "; "))
		}
		return domain.Validationf("%v", err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, domain.Validationf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func parseDates(raw []string) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := parseDate(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (p periodDTO) toModel() (models.Period, error) {
	start, err := parseDate(p.StartDate)
	if err != nil {
		return models.Period{}, err
	}
	end, err := parseDate(p.EndDate)
	if err != nil {
		return models.Period{}, err
	}
	days, err := parseDates(p.SelectedDays)
	if err != nil {
		return models.Period{}, err
	}
	var slots []models.TimeRange
	for _, s := range p.HourlySlots {
		slots = append(slots, models.TimeRange{Start: s.Start, End: s.End})
	}
	return models.Period{
		Type:         models.PeriodType(p.Type),
		StartDate:    start,
		EndDate:      end,
		SelectedDays: days,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		HourlySlots:  slots,
	}, nil
}

func (r resourceDTO) toModel() models.ResourceSelector {
	return models.ResourceSelector{RoomID: r.RoomID, WorkspaceIDs: r.WorkspaceIDs}
}

func (r bookingRequestDTO) toModel() (models.BookingRequest, error) {
	if err := validateDTO(r); err != nil {
		return models.BookingRequest{}, err
	}
	period, err := r.Period.toModel()
	if err != nil {
		return models.BookingRequest{}, err
	}
	return models.BookingRequest{
		RentalType:       models.RentalType(r.RentalType),
		Resource:         r.Resource.toModel(),
		ClientID:         r.ClientID,
		Period:           period,
		AdjustedPrice:    r.AdjustedPrice,
		AdjustmentReason: r.AdjustmentReason,
		PaymentType:      models.PaymentType(r.PaymentType),
		Comment:          r.Comment,
		Submit:           r.Submit,
		IgnoreConflicts:  r.IgnoreConflicts,
	}, nil
}

func (r availabilityRequestDTO) toModel() (models.AvailabilityRequest, error) {
	if err := validateDTO(r); err != nil {
		return models.AvailabilityRequest{}, err
	}
	period, err := r.Period.toModel()
	if err != nil {
		return models.AvailabilityRequest{}, err
	}
	return models.AvailabilityRequest{
		RentalType:       models.RentalType(r.RentalType),
		Resource:         r.Resource.toModel(),
		Period:           period,
		ExcludeBookingID: r.ExcludeBookingID,
		TeacherID:        r.TeacherID,
	}, nil
}

func (r extendRequestDTO) toModel() (models.ExtendRequest, error) {
	if err := validateDTO(r); err != nil {
		return models.ExtendRequest{}, err
	}
	start, err := parseDate(r.StartDate)
	if err != nil {
		return models.ExtendRequest{}, err
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return models.ExtendRequest{}, err
	}
	days, err := parseDates(r.SelectedDays)
	if err != nil {
		return models.ExtendRequest{}, err
	}
	return models.ExtendRequest{StartDate: start, EndDate: end, SelectedDays: days, IgnoreConflicts: r.IgnoreConflicts}, nil
}

// filterFromQuery reads the list filter from URL query values.
func filterFromQuery(get func(string) string) (models.BookingFilter, error) {
	var f models.BookingFilter
	for _, s := range splitCSV(get("status")) {
		f.Statuses = append(f.Statuses, models.Status(s))
	}
	f.RentalType = models.RentalType(get("rental_type"))
	f.Search = strings.TrimSpace(get("q"))

	ints := []struct {
		name string
		dst  *int64
	}{
		{"client_id", &f.ClientID},
		{"room_id", &f.RoomID},
		{"workspace_id", &f.WorkspaceID},
	}
	for _, p := range ints {
		if raw := get(p.name); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v <= 0 {
				return f, domain.Validationf("invalid %s %q", p.name, raw)
			}
			*p.dst = v
		}
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if raw := get(name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				return f, domain.Validationf("invalid %s %q", name, raw)
			}
			*dst = v
		}
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if raw := get(name); raw != "" {
			d, err := parseDate(raw)
			if err != nil {
				return f, err
			}
			*dst = &d
		}
	}
	return f, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
