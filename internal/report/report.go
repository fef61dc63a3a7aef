// Package report computes read-only financial and attendance aggregates for
// an event from persisted registrations, check-ins and payments.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"eventdesk/internal/attendance"
	"eventdesk/internal/model"
)

// Source is the narrow read capability the aggregator needs. Passing
// uuid.Nil as the event id fetches rows across all events.
type Source interface {
	FetchRegistrations(ctx context.Context, eventID uuid.UUID) ([]model.Registration, error)
	FetchCheckIns(ctx context.Context, eventID uuid.UUID) ([]model.CheckIn, error)
	FetchPayments(ctx context.Context, eventID uuid.UUID) ([]model.Payment, error)
	FetchEvents(ctx context.Context) ([]model.Event, error)
}

type MethodTotal struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

type FinancialReport struct {
	TotalRegistrations int           `json:"totalRegistrations"`
	TotalRevenue       float64       `json:"totalRevenue"`
	TotalPaid          int           `json:"totalPaid"`
	TotalUnpaid        int           `json:"totalUnpaid"`
	PaymentBreakdown   []MethodTotal `json:"paymentBreakdown"`
}

type TimeBucket struct {
	Time  string `json:"time"`
	Count int    `json:"count"`
}

type DateBucket struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	CheckedIn  int    `json:"checkedIn"`
	CheckedOut int    `json:"checkedOut"`
}

type AttendanceReport struct {
	TotalRegistrations int          `json:"totalRegistrations"`
	TotalAttendees     int          `json:"totalAttendees"`
	AttendanceRate     float64      `json:"attendanceRate"`
	CheckInTimes       []TimeBucket `json:"checkInTimes"`
	AttendanceByDate   []DateBucket `json:"attendanceByDate"`
}

type OverallStats struct {
	TotalEvents        int     `json:"totalEvents"`
	TotalRegistrations int     `json:"totalRegistrations"`
	TotalRevenue       float64 `json:"totalRevenue"`
	ActiveEvents       int     `json:"activeEvents"`
	UpcomingEvents     int     `json:"upcomingEvents"`
}

type Aggregator struct {
	src Source
	log *zerolog.Logger
	now func() time.Time
}

func NewAggregator(src Source, log *zerolog.Logger) *Aggregator {
	return &Aggregator{
		src: src,
		log: log,
		now: time.Now,
	}
}

// Financial builds the financial report for one event. The two reads run
// concurrently; if either fails no partial report is returned.
func (a *Aggregator) Financial(ctx context.Context, eventID uuid.UUID) (*FinancialReport, error) {
	var (
		regs     []model.Registration
		payments []model.Payment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regs, err = a.src.FetchRegistrations(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = a.src.FetchPayments(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		a.log.Error().Err(err).Str("event_id", eventID.String()).Msg("financial report query failed")
		return nil, fmt.Errorf("generate financial report: %w", err)
	}

	rep := &FinancialReport{
		TotalRegistrations: len(regs),
		PaymentBreakdown:   []MethodTotal{},
	}
	for _, r := range regs {
		switch r.Status {
		case model.RegistrationStatusPaid:
			rep.TotalPaid++
		case model.RegistrationStatusUnpaid:
			rep.TotalUnpaid++
		}
	}

	byMethod := make(map[string]*MethodTotal)
	for _, p := range payments {
		rep.TotalRevenue += p.Amount
		mt, ok := byMethod[p.Method]
		if !ok {
			mt = &MethodTotal{Method: p.Method}
			byMethod[p.Method] = mt
		}
		mt.Amount += p.Amount
		mt.Count++
	}
	for _, mt := range byMethod {
		rep.PaymentBreakdown = append(rep.PaymentBreakdown, *mt)
	}
	sort.Slice(rep.PaymentBreakdown, func(i, j int) bool {
		return rep.PaymentBreakdown[i].Method < rep.PaymentBreakdown[j].Method
	})

	return rep, nil
}

// Attendance builds the attendance report for one event.
//
// The store keeps one check-in row per (event, user) pair, but the counts
// below collapse to the latest record per user anyway, so an insert-only
// store would produce the same distinct-user figures.
func (a *Aggregator) Attendance(ctx context.Context, eventID uuid.UUID) (*AttendanceReport, error) {
	var (
		regs     []model.Registration
		checkIns []model.CheckIn
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regs, err = a.src.FetchRegistrations(gctx, eventID)
		return err
	})
	g.Go(func() error {
		var err error
		checkIns, err = a.src.FetchCheckIns(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		a.log.Error().Err(err).Str("event_id", eventID.String()).Msg("attendance report query failed")
		return nil, fmt.Errorf("generate attendance report: %w", err)
	}

	latest := make(map[uuid.UUID]model.CheckIn)
	for _, c := range checkIns {
		cur, ok := latest[c.UserID]
		if !ok || c.StatusTime.After(cur.StatusTime) {
			latest[c.UserID] = c
		}
	}

	stillIn := 0
	for _, c := range latest {
		if c.Status == attendance.StatusCheckedIn {
			stillIn++
		}
	}

	// Guard the empty event: no records means a 0% rate, not a division.
	rate := 0.0
	if len(latest) > 0 {
		rate = float64(stillIn) / float64(len(latest)) * 100
		rate = math.Round(rate*100) / 100
	}

	return &AttendanceReport{
		TotalRegistrations: len(regs),
		TotalAttendees:     len(latest),
		AttendanceRate:     rate,
		CheckInTimes:       bucketByTimeOfDay(checkIns),
		AttendanceByDate:   bucketByDate(checkIns),
	}, nil
}

// bucketByTimeOfDay counts check-in records per clock minute. Buckets are
// keyed and sorted by the minute-of-day value; the 12-hour label is applied
// only after sorting, so "01:00 PM" lands after "09:00 AM".
func bucketByTimeOfDay(checkIns []model.CheckIn) []TimeBucket {
	counts := make(map[int]int)
	for _, c := range checkIns {
		counts[c.StatusTime.Hour()*60+c.StatusTime.Minute()]++
	}

	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]TimeBucket, 0, len(keys))
	for _, k := range keys {
		label := time.Date(0, 1, 1, k/60, k%60, 0, 0, time.UTC).Format("03:04 PM")
		out = append(out, TimeBucket{Time: label, Count: counts[k]})
	}
	return out
}

func bucketByDate(checkIns []model.CheckIn) []DateBucket {
	type daily struct {
		users      map[uuid.UUID]bool
		checkedIn  map[uuid.UUID]bool
		checkedOut map[uuid.UUID]bool
	}

	days := make(map[string]*daily)
	for _, c := range checkIns {
		date := c.StatusTime.Format("2006-01-02")
		d, ok := days[date]
		if !ok {
			d = &daily{
				users:      make(map[uuid.UUID]bool),
				checkedIn:  make(map[uuid.UUID]bool),
				checkedOut: make(map[uuid.UUID]bool),
			}
			days[date] = d
		}
		d.users[c.UserID] = true
		switch c.Status {
		case attendance.StatusCheckedIn:
			d.checkedIn[c.UserID] = true
		case attendance.StatusCheckedOut:
			d.checkedOut[c.UserID] = true
		}
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]DateBucket, 0, len(dates))
	for _, date := range dates {
		d := days[date]
		out = append(out, DateBucket{
			Date:       date,
			Total:      len(d.users),
			CheckedIn:  len(d.checkedIn),
			CheckedOut: len(d.checkedOut),
		})
	}
	return out
}

// Overall computes cross-event statistics for the admin dashboard.
func (a *Aggregator) Overall(ctx context.Context) (*OverallStats, error) {
	var (
		events   []model.Event
		regs     []model.Registration
		payments []model.Payment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = a.src.FetchEvents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		regs, err = a.src.FetchRegistrations(gctx, uuid.Nil)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = a.src.FetchPayments(gctx, uuid.Nil)
		return err
	})
	if err := g.Wait(); err != nil {
		a.log.Error().Err(err).Msg("overall stats query failed")
		return nil, fmt.Errorf("generate overall stats: %w", err)
	}

	stats := &OverallStats{TotalEvents: len(events)}

	now := a.now()
	for _, e := range events {
		if e.Status == model.EventStatusActive {
			stats.ActiveEvents++
		}
		if e.StartDate.After(now) {
			stats.UpcomingEvents++
		}
	}

	users := make(map[uuid.UUID]bool)
	for _, r := range regs {
		users[r.UserID] = true
	}
	stats.TotalRegistrations = len(users)

	for _, p := range payments {
		stats.TotalRevenue += p.Amount
	}

	return stats, nil
}
