package database

var mysqlSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
    user_id VARCHAR(64) NOT NULL PRIMARY KEY,
    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
)`, `
CREATE TABLE IF NOT EXISTS stages (
    stage_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    code VARCHAR(4) NOT NULL UNIQUE,
    title VARCHAR(255) NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS user_stage_progress (
    user_id VARCHAR(64) NOT NULL,
    stage_id BIGINT NOT NULL,
    unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    cleared BOOLEAN NOT NULL DEFAULT FALSE,
    prompt_length INT NOT NULL DEFAULT 0,
    clear_time_ms BIGINT NOT NULL DEFAULT 0,
    cleared_at TIMESTAMP(3) NULL,
    PRIMARY KEY (user_id, stage_id),
    FOREIGN KEY (user_id) REFERENCES users(user_id),
    FOREIGN KEY (stage_id) REFERENCES stages(stage_id)
)`, `
CREATE TABLE IF NOT EXISTS run_logs (
    seq BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    stage_code VARCHAR(4) NOT NULL,
    prompt_length INT NOT NULL,
    clear_time_ms BIGINT NOT NULL,
    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    INDEX idx_run_logs_stage (stage_code),
    INDEX idx_run_logs_user (user_id)
)`,
}

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
    user_id VARCHAR(64) PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, `
CREATE TABLE IF NOT EXISTS stages (
    stage_id BIGSERIAL PRIMARY KEY,
    code VARCHAR(4) NOT NULL UNIQUE,
    title TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS user_stage_progress (
    user_id VARCHAR(64) NOT NULL REFERENCES users(user_id),
    stage_id BIGINT NOT NULL REFERENCES stages(stage_id),
    unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    cleared BOOLEAN NOT NULL DEFAULT FALSE,
    prompt_length INTEGER NOT NULL DEFAULT 0,
    clear_time_ms BIGINT NOT NULL DEFAULT 0,
    cleared_at TIMESTAMPTZ,
    PRIMARY KEY (user_id, stage_id)
)`, `
CREATE TABLE IF NOT EXISTS run_logs (
    seq BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    stage_code VARCHAR(4) NOT NULL,
    prompt_length INTEGER NOT NULL,
    clear_time_ms BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_run_logs_stage ON run_logs (stage_code)`,
	`CREATE INDEX IF NOT EXISTS idx_run_logs_user ON run_logs (user_id)`,
}

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS stages (
    stage_id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS user_stage_progress (
    user_id TEXT NOT NULL REFERENCES users(user_id),
    stage_id INTEGER NOT NULL REFERENCES stages(stage_id),
    unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    cleared BOOLEAN NOT NULL DEFAULT FALSE,
    prompt_length INTEGER NOT NULL DEFAULT 0,
    clear_time_ms INTEGER NOT NULL DEFAULT 0,
    cleared_at TIMESTAMP,
    PRIMARY KEY (user_id, stage_id)
)`, `
CREATE TABLE IF NOT EXISTS run_logs (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    stage_code TEXT NOT NULL,
    prompt_length INTEGER NOT NULL,
    clear_time_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_run_logs_stage ON run_logs (stage_code)`,
	`CREATE INDEX IF NOT EXISTS idx_run_logs_user ON run_logs (user_id)`,
}
