package db

// Schemas per driver. The column sets are identical; only the key and type
// syntax differs between sqlite and mysql.
var schemas = map[string][]string{
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fullname TEXT NOT NULL,
	email TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	action TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price TEXT NOT NULL,
	trade_time DATETIME NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_time ON trades(username, trade_time)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS users (
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	fullname VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS trades (
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	username VARCHAR(255) NOT NULL,
	action VARCHAR(8) NOT NULL,
	symbol VARCHAR(32) NOT NULL,
	quantity BIGINT NOT NULL,
	price DECIMAL(20,6) NOT NULL,
	trade_time DATETIME NOT NULL,
	INDEX idx_trades_user_time (username, trade_time)
)`,
	},
}
