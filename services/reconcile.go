package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"enrollment-module/config"
	"enrollment-module/gateway"
	"enrollment-module/logger"
	"enrollment-module/models"
)

// Reconciler periodically sweeps enrollments stuck in pending and settles
// them against the gateway's record: captured payments are confirmed,
// everything else is cancelled so the seat intent expires.
type Reconciler struct {
	store       Store
	gateway     gateway.PaymentGateway
	enrollments *Enrollments
	cron        *cron.Cron
}

func NewReconciler(store Store, gw gateway.PaymentGateway, enrollments *Enrollments) *Reconciler {
	return &Reconciler{store: store, gateway: gw, enrollments: enrollments}
}

// Start schedules the sweep at the configured interval.
func (r *Reconciler) Start() error {
	r.cron = cron.New()
	spec := fmt.Sprintf("@every %s", config.AppConfig.ReconcileInterval)
	if _, err := r.cron.AddFunc(spec, func() { r.Sweep(context.Background()) }); err != nil {
		return err
	}
	r.cron.Start()
	logger.Info("[RECONCILE] Scheduled - interval: %s, pending timeout: %s",
		config.AppConfig.ReconcileInterval, config.AppConfig.PendingTimeout)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Sweep settles every pending enrollment older than the pending timeout.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-config.AppConfig.PendingTimeout)
	stale, err := r.store.StalePending(ctx, cutoff)
	if err != nil {
		logger.Error("[RECONCILE] Failed to list stale pending enrollments: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	logger.Info("[RECONCILE] Sweep started - %d stale pending enrollment(s)", len(stale))

	for i := range stale {
		if err := r.reconcileOne(ctx, &stale[i]); err != nil {
			logger.Error("[RECONCILE] Failed - EnrollmentID: %d: %v", stale[i].ID, err)
		}
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, enrollment *models.Enrollment) error {
	orderID, err := r.store.OrderIDForEnrollment(ctx, enrollment.ID)
	if err != nil {
		return err
	}
	if orderID == "" {
		// Checkout never reached the gateway; nothing to look up.
		logger.Info("[RECONCILE] Expiring orderless enrollment - EnrollmentID: %d", enrollment.ID)
		return r.store.CancelPending(ctx, enrollment.ID, "checkout abandoned before order creation")
	}

	gwCtx, cancel := context.WithTimeout(ctx, config.AppConfig.GatewayTimeout)
	payments, err := r.gateway.OrderPayments(gwCtx, orderID)
	cancel()
	if err != nil {
		// Gateway unreachable; leave it for the next sweep.
		logger.Warn("[RECONCILE] Gateway lookup failed - OrderID: %s: %v", orderID, err)
		return nil
	}

	for i := range payments {
		if !payments[i].Captured() {
			continue
		}
		logger.Info("[RECONCILE] Found captured payment - EnrollmentID: %d, PaymentID: %s",
			enrollment.ID, payments[i].ID)
		_, err := r.enrollments.Confirm(ctx, enrollment, payments[i].ID, "", "reconcile")
		return err
	}

	logger.Info("[RECONCILE] Expiring unpaid enrollment - EnrollmentID: %d, OrderID: %s",
		enrollment.ID, orderID)
	if err := r.store.CancelPending(ctx, enrollment.ID, "pending payment expired"); err != nil {
		return err
	}
	PublishEnrollmentExpired(enrollment.ID, enrollment.StudentID, orderID)
	return nil
}
