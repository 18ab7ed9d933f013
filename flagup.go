// Package flagup annotates displayed usernames on the host site with a flag
// emoji derived from each account's self-reported location, looked up through
// the site's internal profile API.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, sqlite/, rod/).
package flagup
