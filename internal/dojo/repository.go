package dojo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MemberTotals aggregates the member table.
type MemberTotals struct {
	Total       int
	Active      int
	MonthlyFees decimal.Decimal
}

// Repository is the persistence surface used by Service.
type Repository interface {
	MemberTotals(ctx context.Context) (MemberTotals, error)
	BeltDistribution(ctx context.Context) ([]BeltCount, error)
	PaymentStatusDistribution(ctx context.Context) ([]StatusCount, error)
	ClassesBetween(ctx context.Context, from, to time.Time) ([]ScheduledClass, error)
	Count(ctx context.Context, stmt CountStatement) (int, error)
	PaymentSummary(ctx context.Context, from, to *time.Time) (PaymentSummary, error)
	NewMembers(ctx context.Context, since time.Time, limit int) ([]MemberRef, error)
	OverdueMembers(ctx context.Context, limit int) ([]OverdueMember, error)
	LapsedMembers(ctx context.Context, cutoff time.Time, limit int) ([]MemberRef, error)
	PromotionCandidates(ctx context.Context, asOf time.Time, limit int) ([]PromotionCandidate, error)
	RecentPayments(ctx context.Context, since time.Time, limit int) ([]PaymentEvent, error)
	RecentCancellations(ctx context.Context, since time.Time, limit int) ([]CancellationEvent, error)
	RecentPromotions(ctx context.Context, since time.Time, limit int) ([]PromotionEvent, error)
	DashboardStats(ctx context.Context, today time.Time) (DashboardStats, error)
	EarningsTrend(ctx context.Context, from, to time.Time, monthly bool) ([]EarningsPoint, error)
	MembersJoinedBefore(ctx context.Context, before time.Time) (int, error)
	JoinsBetween(ctx context.Context, from, to time.Time, monthly bool) ([]GrowthPoint, error)
	UpcomingClasses(ctx context.Context, day time.Time, fromClock, toClock string, limit int) ([]UpcomingClass, error)
	BirthdayMembers(ctx context.Context, day time.Time, limit int) ([]MemberRef, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs the repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// MemberTotals implements Repository.
func (r *PGRepository) MemberTotals(ctx context.Context) (MemberTotals, error) {
	var out MemberTotals
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'Active'),
		       COALESCE(SUM(monthly_fee) FILTER (WHERE status = 'Active'), 0)::text
		FROM dojo_members`).Scan(&out.Total, &out.Active, decimalText{&out.MonthlyFees})
	if err != nil {
		return MemberTotals{}, fmt.Errorf("dojo: member totals: %w", err)
	}
	return out, nil
}

// BeltDistribution implements Repository.
func (r *PGRepository) BeltDistribution(ctx context.Context) ([]BeltCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT current_belt, COUNT(*)
		FROM dojo_members
		WHERE status = 'Active'
		GROUP BY current_belt
		ORDER BY array_position(ARRAY['White','Blue','Purple','Brown','Black','Coral','Red'], current_belt)`)
	if err != nil {
		return nil, fmt.Errorf("dojo: belt distribution: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BeltCount, error) {
		var bc BeltCount
		err := row.Scan(&bc.Belt, &bc.Count)
		return bc, err
	})
}

// PaymentStatusDistribution implements Repository.
func (r *PGRepository) PaymentStatusDistribution(ctx context.Context) ([]StatusCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payment_status, COUNT(*)
		FROM dojo_members
		WHERE status = 'Active'
		GROUP BY payment_status
		ORDER BY payment_status`)
	if err != nil {
		return nil, fmt.Errorf("dojo: payment status distribution: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatusCount, error) {
		var sc StatusCount
		err := row.Scan(&sc.Status, &sc.Count)
		return sc, err
	})
}

// ClassesBetween implements Repository.
func (r *PGRepository) ClassesBetween(ctx context.Context, from, to time.Time) ([]ScheduledClass, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, class_name, class_type, to_char(class_date, 'YYYY-MM-DD'),
		       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
		       instructor, status, attendance_count, max_capacity
		FROM dojo_classes
		WHERE class_date BETWEEN $1 AND $2 AND status <> 'Cancelled'
		ORDER BY class_date, start_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("dojo: classes between: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ScheduledClass, error) {
		var c ScheduledClass
		err := row.Scan(&c.ID, &c.ClassName, &c.ClassType, &c.ClassDate, &c.StartTime, &c.EndTime,
			&c.Instructor, &c.Status, &c.AttendanceCount, &c.MaxCapacity)
		return c, err
	})
}

// Count implements Repository.
func (r *PGRepository) Count(ctx context.Context, stmt CountStatement) (int, error) {
	query, args := stmt.SQL()
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("dojo: count %s: %w", stmt.Table, err)
	}
	return n, nil
}

const completedPayments = `status = 'Completed' AND submitted
	AND ($1::date IS NULL OR payment_date >= $1)
	AND ($2::date IS NULL OR payment_date <= $2)`

// PaymentSummary implements Repository.
func (r *PGRepository) PaymentSummary(ctx context.Context, from, to *time.Time) (PaymentSummary, error) {
	var out PaymentSummary
	batch := &pgx.Batch{}
	batch.Queue(`SELECT COALESCE(SUM(amount), 0)::text FROM dojo_payments WHERE `+completedPayments, from, to).
		QueryRow(func(row pgx.Row) error {
			return row.Scan(decimalText{&out.TotalRevenue})
		})
	batch.Queue(`SELECT payment_type, SUM(amount)::text, COUNT(*) FROM dojo_payments WHERE `+completedPayments+`
		GROUP BY payment_type ORDER BY SUM(amount) DESC`, from, to).
		Query(func(rows pgx.Rows) error {
			for rows.Next() {
				var tr TypeRevenue
				if err := rows.Scan(&tr.PaymentType, decimalText{&tr.Total}, &tr.Count); err != nil {
					return err
				}
				out.RevenueByType = append(out.RevenueByType, tr)
			}
			return rows.Err()
		})
	batch.Queue(`SELECT payment_method, SUM(amount)::text, COUNT(*) FROM dojo_payments WHERE `+completedPayments+`
		GROUP BY payment_method ORDER BY SUM(amount) DESC`, from, to).
		Query(func(rows pgx.Rows) error {
			for rows.Next() {
				var mr MethodRevenue
				if err := rows.Scan(&mr.PaymentMethod, decimalText{&mr.Total}, &mr.Count); err != nil {
					return err
				}
				out.RevenueByMethod = append(out.RevenueByMethod, mr)
			}
			return rows.Err()
		})
	batch.Queue(`SELECT to_char(payment_date, 'YYYY-MM-DD'), SUM(amount)::text, COUNT(*) FROM dojo_payments WHERE `+completedPayments+`
		GROUP BY payment_date ORDER BY payment_date`, from, to).
		Query(func(rows pgx.Rows) error {
			for rows.Next() {
				var dr DailyRevenue
				if err := rows.Scan(&dr.PaymentDate, decimalText{&dr.Total}, &dr.Count); err != nil {
					return err
				}
				out.DailyRevenue = append(out.DailyRevenue, dr)
			}
			return rows.Err()
		})
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return PaymentSummary{}, fmt.Errorf("dojo: payment summary: %w", err)
	}
	return out, nil
}

// NewMembers implements Repository.
func (r *PGRepository) NewMembers(ctx context.Context, since time.Time, limit int) ([]MemberRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, member_name, avatar, join_date
		FROM dojo_members
		WHERE status = 'Active' AND join_date >= $1
		ORDER BY join_date DESC, id
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: new members: %w", err)
	}
	return pgx.CollectRows(rows, scanMemberRef)
}

// OverdueMembers implements Repository.
func (r *PGRepository) OverdueMembers(ctx context.Context, limit int) ([]OverdueMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, member_name, avatar, join_date, outstanding::text
		FROM dojo_members
		WHERE status = 'Active' AND payment_status = 'Overdue'
		ORDER BY outstanding DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: overdue members: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OverdueMember, error) {
		var m OverdueMember
		err := row.Scan(&m.ID, &m.Name, &m.Avatar, &m.JoinDate, decimalText{&m.Outstanding})
		return m, err
	})
}

// LapsedMembers implements Repository.
func (r *PGRepository) LapsedMembers(ctx context.Context, cutoff time.Time, limit int) ([]MemberRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.member_name, m.avatar, m.join_date
		FROM dojo_members m
		LEFT JOIN class_attendance a ON a.member_id = m.id AND a.status = 'Present'
		WHERE m.status = 'Active'
		GROUP BY m.id, m.member_name, m.avatar, m.join_date
		HAVING MAX(a.class_date) IS NULL OR MAX(a.class_date) < $1
		ORDER BY m.id
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: lapsed members: %w", err)
	}
	return pgx.CollectRows(rows, scanMemberRef)
}

// PromotionCandidates implements Repository.
func (r *PGRepository) PromotionCandidates(ctx context.Context, asOf time.Time, limit int) ([]PromotionCandidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, member_name, avatar, join_date, current_belt, COALESCE(belt_since, join_date)
		FROM dojo_members
		WHERE status = 'Active'
		  AND ($1::date - COALESCE(belt_since, join_date)) / 30.0 >=
		      CASE current_belt
		          WHEN 'White' THEN 12
		          WHEN 'Blue' THEN 24
		          WHEN 'Purple' THEN 24
		          WHEN 'Brown' THEN 12
		          ELSE 36
		      END
		ORDER BY COALESCE(belt_since, join_date), id
		LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: promotion candidates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PromotionCandidate, error) {
		var c PromotionCandidate
		err := row.Scan(&c.ID, &c.Name, &c.Avatar, &c.JoinDate, &c.Belt, &c.BeltSince)
		return c, err
	})
}

// RecentPayments implements Repository.
func (r *PGRepository) RecentPayments(ctx context.Context, since time.Time, limit int) ([]PaymentEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.member_name, m.avatar, m.join_date, p.amount::text, p.payment_type, p.payment_date
		FROM dojo_payments p
		JOIN dojo_members m ON m.id = p.member_id
		WHERE p.status = 'Completed' AND p.payment_date >= $1
		ORDER BY p.payment_date DESC, p.id
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: recent payments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentEvent, error) {
		var e PaymentEvent
		err := row.Scan(&e.ID, &e.Name, &e.Avatar, &e.JoinDate, decimalText{&e.Amount}, &e.PaymentType, &e.PaymentDate)
		return e, err
	})
}

// RecentCancellations implements Repository.
func (r *PGRepository) RecentCancellations(ctx context.Context, since time.Time, limit int) ([]CancellationEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, member_name, avatar, join_date, next_payment_due, updated_at
		FROM dojo_members
		WHERE status = 'Inactive' AND updated_at >= $1
		ORDER BY updated_at DESC, id
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: recent cancellations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CancellationEvent, error) {
		var e CancellationEvent
		err := row.Scan(&e.ID, &e.Name, &e.Avatar, &e.JoinDate, &e.NextPaymentDue, &e.Modified)
		return e, err
	})
}

// RecentPromotions implements Repository.
func (r *PGRepository) RecentPromotions(ctx context.Context, since time.Time, limit int) ([]PromotionEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.member_name, m.avatar, m.join_date, p.to_belt, p.promotion_date
		FROM belt_promotions p
		JOIN dojo_members m ON m.id = p.member_id
		WHERE p.submitted AND p.promotion_date >= $1
		ORDER BY p.promotion_date DESC, p.id
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: recent promotions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PromotionEvent, error) {
		var e PromotionEvent
		err := row.Scan(&e.ID, &e.Name, &e.Avatar, &e.JoinDate, &e.ToBelt, &e.PromotionDate)
		return e, err
	})
}

// DashboardStats implements Repository.
func (r *PGRepository) DashboardStats(ctx context.Context, today time.Time) (DashboardStats, error) {
	var s DashboardStats
	monthAgo := today.AddDate(0, 0, -30)
	weekAgo := today.AddDate(0, 0, -7)
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM dojo_members),
			(SELECT COUNT(*) FROM dojo_members WHERE status = 'Active'),
			(SELECT COUNT(*) FROM dojo_members WHERE join_date >= $2),
			(SELECT COUNT(*) FROM dojo_classes WHERE class_date = $1 AND status <> 'Cancelled'),
			(SELECT COUNT(*) FROM dojo_classes WHERE class_date BETWEEN $3 AND $1 AND status <> 'Cancelled'),
			(SELECT COALESCE(SUM(amount), 0)::text FROM dojo_payments
			  WHERE payment_date BETWEEN $2 AND $1 AND status = 'Completed'),
			(SELECT COUNT(*) FROM class_attendance WHERE class_date = $1 AND status = 'Present'),
			(SELECT COUNT(*) FROM belt_promotions WHERE promotion_date >= $2 AND submitted),
			(SELECT COUNT(*) FROM dojo_members WHERE payment_status = 'Overdue' AND status = 'Active')`,
		today, monthAgo, weekAgo).Scan(
		&s.TotalMembers, &s.ActiveMembers, &s.NewMembersThisMonth, &s.ClassesToday, &s.ClassesThisWeek,
		decimalText{&s.MonthlyRevenue}, &s.AttendanceToday, &s.PromotionsThisMonth, &s.OverduePayments)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dojo: dashboard stats: %w", err)
	}
	return s, nil
}

// EarningsTrend implements Repository.
func (r *PGRepository) EarningsTrend(ctx context.Context, from, to time.Time, monthly bool) ([]EarningsPoint, error) {
	bucket := bucketFormat(monthly)
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(payment_date, '`+bucket+`') AS period, SUM(amount)::text, COUNT(*)
		FROM dojo_payments
		WHERE payment_date BETWEEN $1 AND $2 AND status = 'Completed'
		GROUP BY period
		ORDER BY period`, from, to)
	if err != nil {
		return nil, fmt.Errorf("dojo: earnings trend: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EarningsPoint, error) {
		var p EarningsPoint
		err := row.Scan(&p.Period, decimalText{&p.TotalAmount}, &p.TransactionCount)
		return p, err
	})
}

// MembersJoinedBefore implements Repository.
func (r *PGRepository) MembersJoinedBefore(ctx context.Context, before time.Time) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dojo_members WHERE join_date < $1`, before).Scan(&n); err != nil {
		return 0, fmt.Errorf("dojo: members joined before: %w", err)
	}
	return n, nil
}

// JoinsBetween implements Repository.
func (r *PGRepository) JoinsBetween(ctx context.Context, from, to time.Time, monthly bool) ([]GrowthPoint, error) {
	bucket := bucketFormat(monthly)
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(join_date, '`+bucket+`') AS period, COUNT(*)
		FROM dojo_members
		WHERE join_date BETWEEN $1 AND $2
		GROUP BY period
		ORDER BY period`, from, to)
	if err != nil {
		return nil, fmt.Errorf("dojo: joins between: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (GrowthPoint, error) {
		var p GrowthPoint
		err := row.Scan(&p.Period, &p.NewMembers)
		return p, err
	})
}

// UpcomingClasses implements Repository.
func (r *PGRepository) UpcomingClasses(ctx context.Context, day time.Time, fromClock, toClock string, limit int) ([]UpcomingClass, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, class_name, to_char(start_time, 'HH24:MI'), instructor
		FROM dojo_classes
		WHERE class_date = $1 AND start_time >= $2::time AND start_time <= $3::time AND status = 'Scheduled'
		ORDER BY start_time
		LIMIT $4`, day, fromClock, toClock, limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: upcoming classes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (UpcomingClass, error) {
		var c UpcomingClass
		err := row.Scan(&c.ID, &c.ClassName, &c.StartTime, &c.Instructor)
		return c, err
	})
}

// BirthdayMembers implements Repository.
func (r *PGRepository) BirthdayMembers(ctx context.Context, day time.Time, limit int) ([]MemberRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, member_name, avatar, join_date
		FROM dojo_members
		WHERE status = 'Active'
		  AND EXTRACT(MONTH FROM date_of_birth) = $1
		  AND EXTRACT(DAY FROM date_of_birth) = $2
		ORDER BY member_name
		LIMIT $3`, int(day.Month()), day.Day(), limit)
	if err != nil {
		return nil, fmt.Errorf("dojo: birthday members: %w", err)
	}
	return pgx.CollectRows(rows, scanMemberRef)
}

func scanMemberRef(row pgx.CollectableRow) (MemberRef, error) {
	var m MemberRef
	err := row.Scan(&m.ID, &m.Name, &m.Avatar, &m.JoinDate)
	return m, err
}

func bucketFormat(monthly bool) string {
	if monthly {
		return "YYYY-MM"
	}
	return "YYYY-MM-DD"
}

// decimalText scans NUMERIC values rendered as text into a decimal.
type decimalText struct {
	dst *decimal.Decimal
}

func (d decimalText) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d.dst = decimal.Zero
		return nil
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		*d.dst = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	default:
		return fmt.Errorf("dojo: cannot scan %T into decimal", src)
	}
}
