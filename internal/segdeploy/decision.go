package segdeploy

// Decide maps a freshly probed endpoint state to the lifecycle action for
// the next transition. It is a pure function: no side effects, and the
// same state always yields the same action, which is what makes pipeline
// re-runs safe.
//
//	ABSENT               -> CREATE   (first deployment)
//	IN_SERVICE           -> UPDATE   (zero-downtime rollout to the new artifact)
//	CREATING, UPDATING   -> CONFLICT (do not race an in-flight transition)
//	FAILED               -> CREATE   (clean recreate; executor deletes first)
//
// Anything unrecognized is treated as CONFLICT: when the state cannot be
// classified, doing nothing and retrying later is the only safe move.
func Decide(state EndpointState) Action {
	switch state {
	case StateAbsent:
		return ActionCreate
	case StateInService:
		return ActionUpdate
	case StateCreating, StateUpdating:
		return ActionConflict
	case StateFailed:
		return ActionCreate
	default:
		return ActionConflict
	}
}
