package repository

import "context"

// schema is the bootstrap DDL. Statements are idempotent so the server can
// run it unconditionally at startup.
const schema = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS tenants (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	name TEXT NOT NULL,
	domain TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	email TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, email)
);

CREATE TABLE IF NOT EXISTS drives (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL,
	slug TEXT NOT NULL DEFAULT '',
	owner_id UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS drive_members (
	drive_id UUID NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
	user_id UUID NOT NULL REFERENCES users(id),
	role TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (drive_id, user_id)
);

CREATE TABLE IF NOT EXISTS pages (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	drive_id UUID NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	parent_id UUID REFERENCES pages(id),
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	properties JSONB,
	revision INT NOT NULL DEFAULT 0,
	position DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_by UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_pages_drive ON pages (drive_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages (parent_id) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS task_lists (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	page_id UUID NOT NULL UNIQUE REFERENCES pages(id) ON DELETE CASCADE,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS task_items (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	task_list_id UUID NOT NULL REFERENCES task_lists(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'todo',
	assignee_id UUID REFERENCES users(id),
	due_date TIMESTAMPTZ,
	position DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_by UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_task_items_list ON task_items (task_list_id);

CREATE TABLE IF NOT EXISTS conversations (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	page_id UUID NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	user_id UUID NOT NULL REFERENCES users(id),
	title TEXT NOT NULL DEFAULT '',
	synthetic BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversations_page ON conversations (page_id);

CREATE TABLE IF NOT EXISTS chat_messages (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	model TEXT,
	input_tokens BIGINT,
	output_tokens BIGINT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_conv ON chat_messages (conversation_id, created_at);

CREATE TABLE IF NOT EXISTS workflow_templates (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	drive_id UUID NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL,
	description TEXT,
	created_by UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workflow_steps (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	template_id UUID NOT NULL REFERENCES workflow_templates(id) ON DELETE CASCADE,
	step_order INT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	agent_id UUID NOT NULL REFERENCES pages(id),
	prompt_template TEXT NOT NULL,
	requires_user_input BOOLEAN NOT NULL DEFAULT false,
	input_schema JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (template_id, step_order)
);

CREATE TABLE IF NOT EXISTS workflow_executions (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	template_id UUID NOT NULL REFERENCES workflow_templates(id),
	drive_id UUID NOT NULL REFERENCES drives(id),
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	status TEXT NOT NULL,
	current_step_order INT NOT NULL DEFAULT 0,
	accumulated_context JSONB NOT NULL DEFAULT '{}',
	started_by UUID NOT NULL REFERENCES users(id),
	error_message TEXT,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_executions_template ON workflow_executions (template_id) WHERE status IN ('running', 'paused');
CREATE INDEX IF NOT EXISTS idx_executions_drive ON workflow_executions (drive_id);

CREATE TABLE IF NOT EXISTS workflow_execution_steps (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	execution_id UUID NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
	step_order INT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	agent_id UUID NOT NULL,
	prompt_template TEXT NOT NULL,
	requires_user_input BOOLEAN NOT NULL DEFAULT false,
	input_schema JSONB,
	status TEXT NOT NULL DEFAULT 'pending',
	agent_input TEXT,
	agent_output TEXT,
	user_input JSONB,
	error_message TEXT,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	UNIQUE (execution_id, step_order)
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	tenant_id UUID NOT NULL UNIQUE REFERENCES tenants(id),
	plan TEXT NOT NULL DEFAULT 'free',
	status TEXT NOT NULL DEFAULT 'active',
	stripe_customer_id TEXT,
	stripe_subscription_id TEXT,
	current_period_end TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS calendar_connections (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	user_id UUID NOT NULL REFERENCES users(id),
	provider TEXT NOT NULL,
	calendar_id TEXT NOT NULL DEFAULT 'primary',
	refresh_token TEXT NOT NULL,
	last_synced_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, user_id, provider)
);

CREATE TABLE IF NOT EXISTS calendar_events (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	connection_id UUID NOT NULL REFERENCES calendar_connections(id) ON DELETE CASCADE,
	external_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	description TEXT,
	starts_at TIMESTAMPTZ NOT NULL,
	ends_at TIMESTAMPTZ NOT NULL,
	attendees JSONB,
	cancelled BOOLEAN NOT NULL DEFAULT false,
	synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ,
	UNIQUE (connection_id, external_id)
);

CREATE TABLE IF NOT EXISTS memories (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	user_id UUID NOT NULL REFERENCES users(id),
	content TEXT NOT NULL,
	embedding VECTOR(1536),
	confidence FLOAT NOT NULL DEFAULT 0.5,
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_memories_user ON memories (tenant_id, user_id);

CREATE TABLE IF NOT EXISTS mcp_tokens (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	user_id UUID NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	digest TEXT NOT NULL UNIQUE,
	last_used_at TIMESTAMPTZ,
	revoked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_entries (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	tenant_id UUID NOT NULL REFERENCES tenants(id),
	actor_id UUID NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	detail JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_entries (tenant_id, created_at);
`

// EnsureSchema creates all tables and indexes if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}
