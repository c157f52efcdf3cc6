package postgresql

// migrations returns the ordered schema migrations for the PostgreSQL backend.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS sessions (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT NOT NULL,
				state TEXT NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions (user_id) WHERE deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS messages (
				id UUID PRIMARY KEY,
				session_id UUID NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages (session_id, created_at);

			CREATE TABLE IF NOT EXISTS interview_states (
				session_id UUID PRIMARY KEY REFERENCES sessions (id) ON DELETE CASCADE,
				section INTEGER NOT NULL,
				question_index INTEGER NOT NULL,
				answered INTEGER NOT NULL,
				phase TEXT NOT NULL,
				progress DOUBLE PRECISION NOT NULL,
				version BIGINT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE IF NOT EXISTS phase_results (
				session_id UUID NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
				phase TEXT NOT NULL,
				status TEXT NOT NULL,
				artifact TEXT NOT NULL DEFAULT '',
				artifact_path TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (session_id, phase)
			);
		`,
	}
}
