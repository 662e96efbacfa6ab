package authflow

// StepForStatus maps a resource returned by the API to the step that handles
// it. Every status a flow uses has exactly one target; anything else is
// ErrUnmappedStatus, never a silent no-op.
func StepForStatus(flow FlowKind, res *Resource) (StepID, error) {
	switch flow {
	case FlowSignIn:
		return signInStep(res)
	case FlowSignUp:
		return signUpStep(res)
	default:
		return "", withMeta(ErrInvalidStep, map[string]any{"flow": string(flow)})
	}
}

func signInStep(res *Resource) (StepID, error) {
	switch status := StatusOf(res); status {
	case "", StatusNeedsIdentifier:
		return StepStart, nil
	case StatusNeedsFirstFactor, StatusNeedsSecondFactor:
		return StepVerifications, nil
	case StatusNeedsNewPassword:
		return StepResetPassword, nil
	case StatusComplete:
		return StepComplete, nil
	default:
		return "", unmapped(FlowSignIn, status)
	}
}

func signUpStep(res *Resource) (StepID, error) {
	switch status := StatusOf(res); status {
	case "", StatusAbandoned:
		return StepStart, nil
	case StatusMissingRequirements:
		switch {
		case len(res.MissingFields) > 0:
			return StepContinue, nil
		case len(res.UnverifiedFields) > 0:
			return StepVerifications, nil
		default:
			return StepContinue, nil
		}
	case StatusComplete:
		return StepComplete, nil
	default:
		return "", unmapped(FlowSignUp, status)
	}
}

func unmapped(flow FlowKind, status Status) error {
	return withMeta(ErrUnmappedStatus, map[string]any{
		"flow":   string(flow),
		"status": string(status),
	})
}

// flowSteps lists the states a flow's router graph contains.
func flowSteps(flow FlowKind) []StepID {
	if flow == FlowSignUp {
		return []StepID{StepStart, StepContinue, StepVerifications, StepCallback, StepComplete}
	}
	return []StepID{StepStart, StepVerifications, StepResetPassword, StepCallback, StepComplete}
}
