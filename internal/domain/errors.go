package domain

import "errors"

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrProfileExists       = errors.New("profile already exists")
	ErrSpecialistNotFound  = errors.New("specialist not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrPaymentNotFound     = errors.New("payment not found")

	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrSessionExpired        = errors.New("session expired")
	ErrSlotUnavailable       = errors.New("specialist already booked for this time")
	ErrInvalidTransition     = errors.New("invalid appointment status transition")
	ErrAppointmentChanged    = errors.New("appointment status changed concurrently")
	ErrNotParticipant        = errors.New("user is not a participant")
	ErrInvalidWebhook        = errors.New("invalid webhook signature")
	ErrUnsupportedEvent      = errors.New("unsupported payment event")
	ErrSpecialistUnavailable = errors.New("specialist is not available for booking")
)
