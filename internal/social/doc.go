// Package social abstracts the social platform: fetching mentions since a
// cursor and posting replies with optional media. The twitter subpackage
// talks to the real v2 API; fixture and debug variants support offline runs.
package social
