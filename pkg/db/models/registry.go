package models

// All lists every persisted model in dependency order. The sqlite dev and test
// paths build their schema from it; postgres uses the goose migrations.
func All() []any {
	return []any{
		&Group{},
		&Participant{},
		&Invitee{},
		&TimeSlot{},
		&TimeSlotSelection{},
		&PaymentRequestBatch{},
		&PaymentRequest{},
		&DisbursementInstrument{},
		&InstrumentTransaction{},
		&CardAccessAuditEvent{},
		&NotificationDelivery{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
