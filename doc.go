// Package authflow orchestrates multi-step sign-in and sign-up flows as a tree
// of state machine actors.
//
// Actors:
//   - Router owns one flow. It keeps the form, the shared third-party actor
//     and at most one step actor alive, and maps every resource status the API
//     reports to exactly one step. An unmapped status is a configuration error.
//   - Step actors (Start, Verifications, Continue, ResetPassword) run one
//     attempt at a time. SUBMIT while an attempt is in flight is ignored.
//     Failures are normalized into go-errors values, routed onto the form and
//     then reported to the router.
//   - The third-party actor handles OAuth, SAML and wallet strategies and the
//     SSO-callback route. Steps address it through ThirdPartyID.
//   - The form (package form) and timer (package timer) actors hold field state
//     and countdowns.
//
// Hosts drive a Router with Send or Navigate and observe it through Snapshot,
// Subscribe and WaitFor:
//
//	router := authflow.NewSignIn(client, authflow.WithConfig(authflow.LoadConfig()))
//	if err := router.Start(ctx); err != nil {
//		return err
//	}
//	defer router.Stop()
//
//	_ = router.Navigate(ctx, authflow.FieldSet{Name: authflow.FieldIdentifier, Value: "a@b.com"})
//	_ = router.Navigate(ctx, authflow.FieldSet{Name: authflow.FieldPassword, Value: "hunter2"})
//	_ = router.Navigate(ctx, authflow.Submit{})
//
// Errors:
//   - Business and validation errors land on the form and in the router Error
//     slot. They are always recoverable.
//   - Configuration errors (unmapped status, unknown field, missing third-party
//     actor) land in ConfigError and are returned by Navigate when they are
//     caused by the navigated event. Use IsConfigurationError to tell them
//     apart.
//
// Activity sinks:
//   - ActivitySink receives step, attempt, redirect and completion events.
//     Sinks run best-effort on the router goroutine (errors are logged); see
//     package activitymap for a transport-agnostic shape.
package authflow
