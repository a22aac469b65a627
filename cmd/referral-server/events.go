package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/referral"
	"github.com/carebridge/carebridge/internal/platform/webhook"
)

// deliveryWindow bounds one fan-out including retries. The manager's retry
// schedule fits comfortably inside it.
const deliveryWindow = 2 * time.Minute

// referralEventPayload is what subscribers receive. It deliberately omits
// specialist notes: webhook receivers get the same projection as the
// public tracking endpoint, identified by the business identifier.
type referralEventPayload struct {
	ReferralID         string     `json:"referral_id"`
	Status             string     `json:"status"`
	FromStatus         string     `json:"from_status,omitempty"`
	Urgency            string     `json:"urgency"`
	Reason             string     `json:"reason"`
	PatientID          uuid.UUID  `json:"patient_id"`
	ReferringDoctorID  uuid.UUID  `json:"referring_doctor_id"`
	TargetSpecialistID *uuid.UUID `json:"target_specialist_id,omitempty"`
	OriginHospitalID   uuid.UUID  `json:"origin_hospital_id"`
	TargetHospitalID   uuid.UUID  `json:"target_hospital_id"`
	TargetDepartmentID uuid.UUID  `json:"target_department_id"`
	AppointmentDate    *time.Time `json:"appointment_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func payloadFor(ref *referral.Referral, fromStatus string) referralEventPayload {
	return referralEventPayload{
		ReferralID:         ref.ReferralID,
		Status:             ref.Status,
		FromStatus:         fromStatus,
		Urgency:            ref.Urgency,
		Reason:             ref.Reason,
		PatientID:          ref.PatientID,
		ReferringDoctorID:  ref.ReferringDoctorID,
		TargetSpecialistID: ref.TargetSpecialistID,
		OriginHospitalID:   ref.OriginHospitalID,
		TargetHospitalID:   ref.TargetHospitalID,
		TargetDepartmentID: ref.TargetDepartmentID,
		AppointmentDate:    ref.AppointmentDate,
		CreatedAt:          ref.CreatedAt,
		UpdatedAt:          ref.UpdatedAt,
	}
}

// webhookSink implements referral.EventSink on top of the webhook manager.
// Delivery happens in a fresh goroutine with its own context: the HTTP
// request that triggered the event finishes without waiting on slow
// receivers, and a cancelled request context cannot abort the fan-out.
type webhookSink struct {
	manager *webhook.Manager
	log     zerolog.Logger
}

func newWebhookSink(manager *webhook.Manager, log zerolog.Logger) *webhookSink {
	return &webhookSink{manager: manager, log: log}
}

func (s *webhookSink) ReferralCreated(ref *referral.Referral) {
	s.dispatch(webhook.EventReferralCreated, ref, payloadFor(ref, ""))
}

func (s *webhookSink) ReferralStatusChanged(ref *referral.Referral, fromStatus string) {
	s.dispatch(webhook.EventReferralStatusChanged, ref, payloadFor(ref, fromStatus))
}

func (s *webhookSink) dispatch(eventType string, ref *referral.Referral, payload referralEventPayload) {
	event, err := webhook.NewEvent(eventType, "referral", ref.ReferralID, payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Str("referral", ref.ReferralID).
			Msg("failed to build webhook event")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryWindow)
		defer cancel()
		s.manager.Deliver(ctx, event)
	}()
}
