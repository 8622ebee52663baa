package cursor

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// openStateDB opens the Cursor state database read-only.
func openStateDB() (*sql.DB, error) {
	return sql.Open("sqlite", "file:"+StateDBPath()+"?mode=ro&immutable=1")
}

// itemTableValue fetches one key from Cursor's ItemTable key-value store.
func itemTableValue(key string) string {
	db, err := openStateDB()
	if err != nil {
		return ""
	}
	defer db.Close()

	var value string
	err = db.QueryRow("SELECT value FROM ItemTable WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// AccountEmail returns the cached Cursor account email, if signed in.
func AccountEmail() string {
	return itemTableValue("cursorAuth/cachedEmail")
}

// MembershipType returns the cached Cursor plan name, if present.
func MembershipType() string {
	return itemTableValue("cursorAuth/stripeMembershipType")
}
