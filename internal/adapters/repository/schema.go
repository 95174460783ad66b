package repository

const schemaV1 = `
CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	inactive      INTEGER NOT NULL DEFAULT 0,
	task_score    INTEGER NOT NULL DEFAULT 0,
	role_score    INTEGER NOT NULL DEFAULT 0,
	gift_score    INTEGER NOT NULL DEFAULT 0,
	payment_score INTEGER NOT NULL DEFAULT 0,
	total_score   INTEGER NOT NULL DEFAULT 0,
	task_past     INTEGER NOT NULL DEFAULT 0,
	role_past     INTEGER NOT NULL DEFAULT 0,
	gift_past     INTEGER NOT NULL DEFAULT 0,
	payment_past  INTEGER NOT NULL DEFAULT 0,
	total_past    INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS score_entries (
	id          TEXT PRIMARY KEY,
	category    TEXT NOT NULL CHECK (category IN ('task','role','gift','payment')),
	source_id   TEXT NOT NULL,
	profile_id  TEXT NOT NULL REFERENCES profiles(id),
	kind        TEXT NOT NULL,
	points      INTEGER NOT NULL,
	amount      TEXT NOT NULL DEFAULT '0',
	note        TEXT NOT NULL DEFAULT '',
	reversible  INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	UNIQUE(category, source_id, profile_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_entries_profile ON score_entries(profile_id, category);

CREATE TABLE IF NOT EXISTS snapshots (
	profile_id    TEXT NOT NULL REFERENCES profiles(id),
	snapshot_date TEXT NOT NULL,
	task          INTEGER NOT NULL,
	role          INTEGER NOT NULL,
	gift          INTEGER NOT NULL,
	payment       INTEGER NOT NULL,
	total         INTEGER NOT NULL,
	PRIMARY KEY (profile_id, snapshot_date)
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('planned','active','completed','billed','paid','canceled')),
	event_date  TEXT,
	start_time  TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS participants (
	id          TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL REFERENCES events(id),
	profile_id  TEXT NOT NULL REFERENCES profiles(id),
	role        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	UNIQUE(event_id, profile_id, role)
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	event_id        TEXT NOT NULL REFERENCES events(id),
	title           TEXT NOT NULL,
	status          TEXT NOT NULL CHECK (status IN ('pending','in_progress','completed','overdue','reminder')),
	due_date        TEXT,
	base_points     INTEGER NOT NULL CHECK (base_points >= 0),
	penalty_points  INTEGER NOT NULL CHECK (penalty_points <= 0),
	points_awarded  INTEGER NOT NULL DEFAULT 0,
	penalty_applied INTEGER NOT NULL DEFAULT 0,
	completed_at    TEXT,
	cost_related    INTEGER NOT NULL DEFAULT 0,
	budget          TEXT NOT NULL DEFAULT '0',
	actual_expenses TEXT NOT NULL DEFAULT '0',
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_event ON tasks(event_id);

CREATE TABLE IF NOT EXISTS task_assignees (
	task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	profile_id  TEXT NOT NULL REFERENCES profiles(id),
	PRIMARY KEY (task_id, profile_id)
);

CREATE TABLE IF NOT EXISTS gift_searches (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	created_by  TEXT NOT NULL REFERENCES profiles(id),
	finalized   INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gift_proposals (
	id           TEXT PRIMARY KEY,
	search_id    TEXT NOT NULL REFERENCES gift_searches(id),
	proposed_by  TEXT NOT NULL REFERENCES profiles(id),
	title        TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS votes (
	proposal_id TEXT NOT NULL REFERENCES gift_proposals(id),
	voter_id    TEXT NOT NULL REFERENCES profiles(id),
	created_at  TEXT NOT NULL,
	PRIMARY KEY (proposal_id, voter_id)
);

CREATE TABLE IF NOT EXISTS gift_contributions (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	manager_id  TEXT NOT NULL REFERENCES profiles(id),
	status      TEXT NOT NULL CHECK (status IN ('open','closed','canceled')),
	deadline    TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contributions (
	id               TEXT PRIMARY KEY,
	contribution_id  TEXT NOT NULL REFERENCES gift_contributions(id) ON DELETE CASCADE,
	contributor_id   TEXT NOT NULL REFERENCES profiles(id),
	value            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id               TEXT PRIMARY KEY,
	from_id          TEXT NOT NULL REFERENCES profiles(id),
	to_id            TEXT NOT NULL REFERENCES profiles(id),
	amount           TEXT NOT NULL,
	category         TEXT NOT NULL CHECK (category IN ('task','event','gift')),
	status           TEXT NOT NULL CHECK (status IN ('billed','paid','confirmed')),
	event_id         TEXT REFERENCES events(id),
	contribution_id  TEXT REFERENCES gift_contributions(id),
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_event ON transactions(event_id);
CREATE INDEX IF NOT EXISTS idx_transactions_contribution ON transactions(contribution_id);
`

const schemaV2 = `
ALTER TABLE gift_searches ADD COLUMN deadline TEXT;
CREATE INDEX IF NOT EXISTS idx_gift_searches_open ON gift_searches(finalized, deadline);
`
