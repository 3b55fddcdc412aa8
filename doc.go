// Package accounts implements the account lifecycle of a platform with
// self registered users, vetted practitioners and super administrators.
//
// Account lifecycle:
//   - Accounts carry an AccountStatus (PENDING, ACTIVE, INACTIVE, REJECTED)
//     and, for practitioners only, an ApprovalStatus (PENDING, APPROVED,
//     REJECTED). Both are persisted via Bun.
//   - AccountStateMachine owns the guards for every lifecycle event, the
//     status graph and the login gate. Transitions run inside the caller's
//     transaction and persist through Accounts.UpdateVersionedTx, a compare
//     and swap on the row version, so two concurrent decisions on the same
//     account can never both succeed.
//
// One time secrets:
//   - Registration issues a six digit email verification code. Resends are
//     rate limited by a cool down derived from the code expiry.
//   - Rejection issues a single use reapply token. Only its SHA-256 hash is
//     stored and the token is consumed by the write that resubmits.
//
// Activity sinks and notifications:
//   - ActivitySink receives lifecycle, login and password events. Notifier
//     delivers emails. Both run after the transaction committed and both are
//     best effort: failures are logged and never undo a state change.
//
// Administrative actions (approve, reject, inactivate, reactivate) also
// append an AuditLogEntry in the same transaction as the state change.
package accounts
