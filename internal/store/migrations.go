package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mail_accounts (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	mail_server       TEXT NOT NULL DEFAULT '',
	mail_port         INTEGER NOT NULL DEFAULT 993,
	mail_use_tls      INTEGER NOT NULL DEFAULT 1 CHECK(mail_use_tls IN (0, 1)),
	mail_username     TEXT NOT NULL DEFAULT '',
	mail_password     TEXT NOT NULL DEFAULT '',
	ai_api_key        TEXT NOT NULL DEFAULT '',
	from_filter       TEXT NOT NULL DEFAULT '',
	poll_interval_sec INTEGER NOT NULL DEFAULT 0,
	enabled           INTEGER NOT NULL DEFAULT 1 CHECK(enabled IN (0, 1)),
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES mail_accounts(id) ON DELETE CASCADE,
	name         TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'New'
		CHECK(status IN ('New', 'Contacted', 'Qualified', 'Unqualified', 'Spam')),
	score        REAL NOT NULL DEFAULT 0,
	last_contact DATETIME,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(account_id, email)
);

CREATE TABLE IF NOT EXISTS emails (
	id               TEXT PRIMARY KEY,
	account_id       TEXT NOT NULL REFERENCES mail_accounts(id) ON DELETE CASCADE,
	lead_id          TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	message_id       TEXT,
	sender           TEXT NOT NULL DEFAULT '',
	sender_name      TEXT NOT NULL DEFAULT '',
	subject          TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL DEFAULT '',
	received_date    DATETIME NOT NULL,
	encoding         TEXT NOT NULL DEFAULT '',
	is_mass_mail     INTEGER NOT NULL DEFAULT 0 CHECK(is_mass_mail IN (0, 1)),
	mass_mail_reason TEXT NOT NULL DEFAULT '',
	ai_analysis      TEXT,
	ai_analysis_date DATETIME,
	ai_model_used    TEXT,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_account_message
	ON emails(account_id, message_id);
CREATE INDEX IF NOT EXISTS idx_emails_lead_received
	ON emails(lead_id, received_date);

CREATE TABLE IF NOT EXISTS unknown_emails (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL REFERENCES mail_accounts(id) ON DELETE CASCADE,
	message_id    TEXT,
	sender        TEXT NOT NULL DEFAULT '',
	sender_name   TEXT NOT NULL DEFAULT '',
	subject       TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	received_date DATETIME NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_unknown_emails_account_message
	ON unknown_emails(account_id, message_id);

CREATE TABLE IF NOT EXISTS email_fetch_tracker (
	account_id      TEXT PRIMARY KEY REFERENCES mail_accounts(id) ON DELETE CASCADE,
	last_fetch_time DATETIME NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES mail_accounts(id) ON DELETE CASCADE,
	lead_id         TEXT REFERENCES leads(id) ON DELETE CASCADE,
	email_id        TEXT REFERENCES emails(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	due_date        DATETIME,
	status          TEXT NOT NULL DEFAULT 'Pending',
	is_ai_generated INTEGER NOT NULL DEFAULT 0 CHECK(is_ai_generated IN (0, 1)),
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schedules (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES mail_accounts(id) ON DELETE CASCADE,
	lead_id         TEXT REFERENCES leads(id) ON DELETE CASCADE,
	email_id        TEXT REFERENCES emails(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	start_time      DATETIME NOT NULL,
	end_time        DATETIME NOT NULL,
	status          TEXT NOT NULL DEFAULT 'Scheduled',
	is_ai_generated INTEGER NOT NULL DEFAULT 0 CHECK(is_ai_generated IN (0, 1)),
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS opportunities (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES mail_accounts(id) ON DELETE CASCADE,
	lead_id         TEXT REFERENCES leads(id) ON DELETE CASCADE,
	email_id        TEXT REFERENCES emails(id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	stage           TEXT NOT NULL DEFAULT 'Prospecting',
	is_ai_generated INTEGER NOT NULL DEFAULT 0 CHECK(is_ai_generated IN (0, 1)),
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_email_id ON tasks(email_id);
CREATE INDEX IF NOT EXISTS idx_tasks_lead_id ON tasks(lead_id);
CREATE INDEX IF NOT EXISTS idx_schedules_email_id ON schedules(email_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_email_id ON opportunities(email_id);

CREATE TABLE IF NOT EXISTS behavior_analyses (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	result      TEXT NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	analyzed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_behavior_analyses_lead
	ON behavior_analyses(lead_id, analyzed_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES mail_accounts(id) ON DELETE CASCADE,
	lead_id    TEXT REFERENCES leads(id) ON DELETE SET NULL,
	kind       TEXT NOT NULL CHECK(kind IN ('new_lead', 'auth_error')),
	message    TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
