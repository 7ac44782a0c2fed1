package taskname

// Event tasks published by the outbox dispatcher. The suffix matches event.Type.
const (
	EventPrefix = "points:event:"

	PointsChanged             = EventPrefix + "points_changed"
	Joined                    = EventPrefix + "joined"
	ReferralAccepted          = EventPrefix + "referral_accepted"
	InviterApplied            = EventPrefix + "inviter_applied"
	TenantAdded               = EventPrefix + "tenant_added"
	PointCreated              = EventPrefix + "point_created"
	ActionRulesChanged        = EventPrefix + "action_rules_changed"
	SelfIncreasingRuleChanged = EventPrefix + "self_increasing_rule_changed"
)

// ForEvent maps an event type to its task name.
func ForEvent(eventType string) string {
	return EventPrefix + eventType
}
