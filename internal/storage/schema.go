package storage

const schema = `
-- 'categories' group questions; only the active flag matters to scheduling.
CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    active BOOLEAN NOT NULL DEFAULT 1
);

-- 'questions' holds each flashcard and its SM-2 scheduling state.
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    answer TEXT NOT NULL,
    hash TEXT UNIQUE, -- content hash for imported questions, NULL otherwise
    ord REAL NOT NULL DEFAULT 0,
    last_asked_on DATETIME,
    next_due_on DATETIME,
    previous_interval INTEGER NOT NULL DEFAULT 0,
    interval INTEGER NOT NULL DEFAULT 0,
    ask_count INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0,
    response_quality INTEGER NOT NULL DEFAULT 0,
    easiness_factor REAL NOT NULL DEFAULT 2.5,

    FOREIGN KEY(category_id) REFERENCES categories(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS questions_category_ord ON questions(category_id, ord);
`
