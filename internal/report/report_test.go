package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventdesk/internal/attendance"
	"eventdesk/internal/model"
)

type memSource struct {
	events        []model.Event
	registrations []model.Registration
	checkIns      []model.CheckIn
	payments      []model.Payment
	failing       bool
}

func (m *memSource) filterRegs(eventID uuid.UUID) []model.Registration {
	if eventID == uuid.Nil {
		return m.registrations
	}
	var out []model.Registration
	for _, r := range m.registrations {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memSource) FetchRegistrations(_ context.Context, eventID uuid.UUID) ([]model.Registration, error) {
	if m.failing {
		return nil, errors.New("store unreachable")
	}
	return m.filterRegs(eventID), nil
}

func (m *memSource) FetchCheckIns(_ context.Context, eventID uuid.UUID) ([]model.CheckIn, error) {
	if m.failing {
		return nil, errors.New("store unreachable")
	}
	if eventID == uuid.Nil {
		return m.checkIns, nil
	}
	var out []model.CheckIn
	for _, c := range m.checkIns {
		if c.EventID == eventID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memSource) FetchPayments(_ context.Context, eventID uuid.UUID) ([]model.Payment, error) {
	if m.failing {
		return nil, errors.New("store unreachable")
	}
	if eventID == uuid.Nil {
		return m.payments, nil
	}
	var out []model.Payment
	for _, p := range m.payments {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memSource) FetchEvents(_ context.Context) ([]model.Event, error) {
	if m.failing {
		return nil, errors.New("store unreachable")
	}
	return m.events, nil
}

func newTestAggregator(src Source) *Aggregator {
	log := zerolog.Nop()
	return NewAggregator(src, &log)
}

func reg(eventID uuid.UUID, status string) model.Registration {
	return model.Registration{
		ID:      uuid.New(),
		EventID: eventID,
		UserID:  uuid.New(),
		Status:  status,
	}
}

func checkIn(eventID, userID uuid.UUID, status string, at time.Time) model.CheckIn {
	return model.CheckIn{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Status:     status,
		StatusTime: at,
	}
}

func payment(eventID uuid.UUID, amount float64, method string) model.Payment {
	return model.Payment{
		ID:      uuid.New(),
		EventID: eventID,
		Amount:  amount,
		Method:  method,
		Status:  model.PaymentStatusSucceeded,
	}
}

// Three registrations, two attendees (one later checked out), one card
// payment of $50.
func TestEventScenario(t *testing.T) {
	eventID := uuid.New()
	day := time.Date(2026, 5, 20, 9, 30, 0, 0, time.UTC)

	src := &memSource{
		registrations: []model.Registration{
			reg(eventID, model.RegistrationStatusPaid),
			reg(eventID, model.RegistrationStatusPending),
			reg(eventID, model.RegistrationStatusUnpaid),
		},
		checkIns: []model.CheckIn{
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, day),
			checkIn(eventID, uuid.New(), attendance.StatusCheckedOut, day.Add(30*time.Minute)),
		},
		payments: []model.Payment{
			payment(eventID, 50, "card"),
		},
	}
	agg := newTestAggregator(src)

	fin, err := agg.Financial(context.Background(), eventID)
	if err != nil {
		t.Fatalf("financial: %v", err)
	}
	if fin.TotalRegistrations != 3 {
		t.Errorf("totalRegistrations = %d, want 3", fin.TotalRegistrations)
	}
	if fin.TotalRevenue != 50 {
		t.Errorf("totalRevenue = %v, want 50", fin.TotalRevenue)
	}
	if fin.TotalPaid != 1 || fin.TotalUnpaid != 1 {
		t.Errorf("paid/unpaid = %d/%d, want 1/1", fin.TotalPaid, fin.TotalUnpaid)
	}
	if len(fin.PaymentBreakdown) != 1 {
		t.Fatalf("breakdown length = %d, want 1", len(fin.PaymentBreakdown))
	}
	if mt := fin.PaymentBreakdown[0]; mt.Method != "card" || mt.Amount != 50 || mt.Count != 1 {
		t.Errorf("breakdown = %+v, want {card 50 1}", mt)
	}

	att, err := agg.Attendance(context.Background(), eventID)
	if err != nil {
		t.Fatalf("attendance: %v", err)
	}
	if att.TotalRegistrations != 3 {
		t.Errorf("totalRegistrations = %d, want 3", att.TotalRegistrations)
	}
	if att.TotalAttendees != 2 {
		t.Errorf("totalAttendees = %d, want 2", att.TotalAttendees)
	}
	if att.AttendanceRate != 50 {
		t.Errorf("attendanceRate = %v, want 50", att.AttendanceRate)
	}
	if len(att.AttendanceByDate) != 1 {
		t.Fatalf("attendanceByDate length = %d, want 1", len(att.AttendanceByDate))
	}
	d := att.AttendanceByDate[0]
	if d.Date != "2026-05-20" || d.Total != 2 || d.CheckedIn != 1 || d.CheckedOut != 1 {
		t.Errorf("attendanceByDate = %+v", d)
	}
}

func TestEmptyEvent(t *testing.T) {
	agg := newTestAggregator(&memSource{})
	eventID := uuid.New()

	fin, err := agg.Financial(context.Background(), eventID)
	if err != nil {
		t.Fatalf("financial: %v", err)
	}
	if fin.TotalRegistrations != 0 || fin.TotalRevenue != 0 || fin.TotalPaid != 0 || fin.TotalUnpaid != 0 {
		t.Errorf("expected all-zero financial report, got %+v", fin)
	}
	if len(fin.PaymentBreakdown) != 0 {
		t.Errorf("expected empty breakdown, got %+v", fin.PaymentBreakdown)
	}

	att, err := agg.Attendance(context.Background(), eventID)
	if err != nil {
		t.Fatalf("attendance: %v", err)
	}
	if att.AttendanceRate != 0 {
		t.Errorf("attendanceRate = %v, want 0 for no check-ins", att.AttendanceRate)
	}
	if att.TotalAttendees != 0 {
		t.Errorf("totalAttendees = %v, want 0", att.TotalAttendees)
	}
	if len(att.CheckInTimes) != 0 || len(att.AttendanceByDate) != 0 {
		t.Errorf("expected empty buckets, got %+v / %+v", att.CheckInTimes, att.AttendanceByDate)
	}
}

func TestBreakdownSumsToRevenue(t *testing.T) {
	eventID := uuid.New()
	src := &memSource{
		payments: []model.Payment{
			payment(eventID, 25, "card"),
			payment(eventID, 75, "card"),
			payment(eventID, 10, "cash"),
			payment(eventID, 40, "transfer"),
		},
	}
	agg := newTestAggregator(src)

	fin, err := agg.Financial(context.Background(), eventID)
	if err != nil {
		t.Fatalf("financial: %v", err)
	}

	var amount float64
	var count int
	for _, mt := range fin.PaymentBreakdown {
		amount += mt.Amount
		count += mt.Count
	}
	if amount != fin.TotalRevenue {
		t.Errorf("breakdown amounts sum to %v, revenue is %v", amount, fin.TotalRevenue)
	}
	if count != len(src.payments) {
		t.Errorf("breakdown counts sum to %d, want %d", count, len(src.payments))
	}
	// sorted by method name
	for i := 1; i < len(fin.PaymentBreakdown); i++ {
		if fin.PaymentBreakdown[i-1].Method > fin.PaymentBreakdown[i].Method {
			t.Errorf("breakdown not sorted: %+v", fin.PaymentBreakdown)
		}
	}
}

func TestAttendanceRateBounds(t *testing.T) {
	eventID := uuid.New()
	base := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

	// 1 of 3 still checked in
	src := &memSource{
		checkIns: []model.CheckIn{
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, base),
			checkIn(eventID, uuid.New(), attendance.StatusCheckedOut, base),
			checkIn(eventID, uuid.New(), attendance.StatusCheckedOut, base),
		},
	}
	agg := newTestAggregator(src)

	att, err := agg.Attendance(context.Background(), eventID)
	if err != nil {
		t.Fatalf("attendance: %v", err)
	}
	if att.AttendanceRate < 0 || att.AttendanceRate > 100 {
		t.Fatalf("attendanceRate %v out of [0,100]", att.AttendanceRate)
	}
	if att.AttendanceRate != 33.33 {
		t.Errorf("attendanceRate = %v, want 33.33", att.AttendanceRate)
	}
}

// "01:00 PM" must land after "09:00 AM" even though it sorts before it
// lexicographically.
func TestCheckInTimesChronological(t *testing.T) {
	eventID := uuid.New()
	day := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	src := &memSource{
		checkIns: []model.CheckIn{
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, day.Add(13*time.Hour)),                // 01:00 PM
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, day.Add(9*time.Hour)),                 // 09:00 AM
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, day.Add(9*time.Hour)),                 // 09:00 AM
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, day.Add(23*time.Hour+5*time.Minute)), // 11:05 PM
		},
	}
	agg := newTestAggregator(src)

	att, err := agg.Attendance(context.Background(), eventID)
	if err != nil {
		t.Fatalf("attendance: %v", err)
	}

	want := []TimeBucket{
		{Time: "09:00 AM", Count: 2},
		{Time: "01:00 PM", Count: 1},
		{Time: "11:05 PM", Count: 1},
	}
	if len(att.CheckInTimes) != len(want) {
		t.Fatalf("checkInTimes = %+v, want %+v", att.CheckInTimes, want)
	}
	for i := range want {
		if att.CheckInTimes[i] != want[i] {
			t.Errorf("checkInTimes[%d] = %+v, want %+v", i, att.CheckInTimes[i], want[i])
		}
	}
}

func TestAttendanceByDateOrdered(t *testing.T) {
	eventID := uuid.New()
	src := &memSource{
		checkIns: []model.CheckIn{
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, time.Date(2026, 5, 22, 10, 0, 0, 0, time.UTC)),
			checkIn(eventID, uuid.New(), attendance.StatusCheckedOut, time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)),
			checkIn(eventID, uuid.New(), attendance.StatusCheckedIn, time.Date(2026, 5, 21, 10, 0, 0, 0, time.UTC)),
		},
	}
	agg := newTestAggregator(src)

	att, err := agg.Attendance(context.Background(), eventID)
	if err != nil {
		t.Fatalf("attendance: %v", err)
	}

	wantDates := []string{"2026-05-20", "2026-05-21", "2026-05-22"}
	if len(att.AttendanceByDate) != len(wantDates) {
		t.Fatalf("attendanceByDate = %+v", att.AttendanceByDate)
	}
	for i, d := range att.AttendanceByDate {
		if d.Date != wantDates[i] {
			t.Errorf("attendanceByDate[%d].Date = %s, want %s", i, d.Date, wantDates[i])
		}
	}
}

func TestReportFailsWhole(t *testing.T) {
	agg := newTestAggregator(&memSource{failing: true})
	eventID := uuid.New()

	if _, err := agg.Financial(context.Background(), eventID); err == nil {
		t.Fatal("expected financial report to fail when a query fails")
	}
	if _, err := agg.Attendance(context.Background(), eventID); err == nil {
		t.Fatal("expected attendance report to fail when a query fails")
	}
	if _, err := agg.Overall(context.Background()); err == nil {
		t.Fatal("expected overall stats to fail when a query fails")
	}
}

func TestOverallStats(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	active := uuid.New()
	upcoming := uuid.New()
	userA, userB := uuid.New(), uuid.New()

	src := &memSource{
		events: []model.Event{
			{ID: active, Status: model.EventStatusActive, StartDate: now.Add(-time.Hour)},
			{ID: upcoming, Status: model.EventStatusDraft, StartDate: now.Add(48 * time.Hour)},
			{ID: uuid.New(), Status: model.EventStatusCompleted, StartDate: now.Add(-72 * time.Hour)},
		},
		registrations: []model.Registration{
			{ID: uuid.New(), EventID: active, UserID: userA, Status: model.RegistrationStatusPaid},
			{ID: uuid.New(), EventID: upcoming, UserID: userA, Status: model.RegistrationStatusPending},
			{ID: uuid.New(), EventID: upcoming, UserID: userB, Status: model.RegistrationStatusPaid},
		},
		payments: []model.Payment{
			payment(active, 30, "card"),
			payment(upcoming, 45, "cash"),
		},
	}

	agg := newTestAggregator(src)
	agg.now = func() time.Time { return now }

	stats, err := agg.Overall(context.Background())
	if err != nil {
		t.Fatalf("overall: %v", err)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("totalEvents = %d, want 3", stats.TotalEvents)
	}
	if stats.ActiveEvents != 1 {
		t.Errorf("activeEvents = %d, want 1", stats.ActiveEvents)
	}
	if stats.UpcomingEvents != 1 {
		t.Errorf("upcomingEvents = %d, want 1", stats.UpcomingEvents)
	}
	if stats.TotalRegistrations != 2 {
		t.Errorf("totalRegistrations = %d, want 2 distinct users", stats.TotalRegistrations)
	}
	if stats.TotalRevenue != 75 {
		t.Errorf("totalRevenue = %v, want 75", stats.TotalRevenue)
	}
}
