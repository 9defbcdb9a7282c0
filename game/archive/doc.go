// Package archive records finished Connect Four matches.
//
// A Store saves one MatchRecord per finished match and lists the most
// recent ones. Four backends are available through Open:
//
//	memory    bounded in-process list (default)
//	file      one JSON file per match in a directory
//	redis     capped list in Redis (go-redis)
//	postgres  table managed by gorm
//
// Stores are safe for concurrent use.
package archive
