// Package review stores the cases operators work through after a member is
// locked out. Case ids are KSUIDs so listing by id is also listing by time.
package review
