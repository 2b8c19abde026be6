package sqlite

// Sessions are stored as a JSON document next to the columns the store
// queries or conditions on.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		version        INTEGER NOT NULL,
		type           TEXT NOT NULL,
		creator_id     TEXT NOT NULL,
		starts_at      TEXT NOT NULL,
		rating_pending INTEGER NOT NULL DEFAULT 0,
		doc            TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_starts_at ON sessions (starts_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_rating_pending ON sessions (rating_pending) WHERE rating_pending = 1`,
	`CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		skill_level  REAL NOT NULL,
		elo          INTEGER NOT NULL,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_elo ON users (elo DESC, id)`,
	`CREATE TABLE IF NOT EXISTS rating_history (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users (id),
		session_id TEXT NOT NULL,
		old_elo    INTEGER NOT NULL,
		new_elo    INTEGER NOT NULL,
		at         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rating_history_user ON rating_history (user_id, at DESC, id DESC)`,
}
