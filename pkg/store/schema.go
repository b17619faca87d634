package store

// schema defines every table and index required by §3/§4.1/§6. Tables are
// grouped by owning component in comments; ownership of writes is enforced
// in Go (pkg/memory, pkg/topic, pkg/social, pkg/fleet), not by the schema.
const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;
PRAGMA foreign_keys = OFF;

-- Memory Vault (B): episodic / social / belief memories and the trait ledger.
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	strength REAL NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_id, created_at);
CREATE INDEX IF NOT EXISTS idx_memories_agent_kind_strength ON memories(agent_id, kind, strength);

CREATE TABLE IF NOT EXISTS trait_changes (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	trait TEXT NOT NULL,
	delta REAL NOT NULL,
	reason TEXT NOT NULL,
	resulting_value REAL NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trait_changes_agent_trait ON trait_changes(agent_id, trait, created_at);

-- Topic Memory (C): conversation topics and cross-agent shared memories.
CREATE TABLE IF NOT EXISTS topics (
	id TEXT PRIMARY KEY,
	player_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	category TEXT NOT NULL,
	content TEXT NOT NULL,
	emotional_weight REAL NOT NULL,
	keywords TEXT NOT NULL, -- comma-joined
	created_at INTEGER NOT NULL,
	reference_count INTEGER NOT NULL DEFAULT 1,
	strength REAL NOT NULL,
	decay_rate REAL NOT NULL,
	last_reinforced_at INTEGER NOT NULL,
	UNIQUE(agent_id, player_id, category, content)
);
CREATE INDEX IF NOT EXISTS idx_topics_agent_player ON topics(agent_id, player_id);

CREATE TABLE IF NOT EXISTS shared_memories (
	id TEXT PRIMARY KEY,
	source_topic_id TEXT NOT NULL,
	from_agent_id TEXT NOT NULL,
	to_agent_id TEXT NOT NULL,
	player_id TEXT NOT NULL,
	category TEXT NOT NULL,
	content TEXT NOT NULL,
	weight REAL NOT NULL,
	trust_factor REAL NOT NULL,
	strength REAL NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(to_agent_id, source_topic_id)
);
CREATE INDEX IF NOT EXISTS idx_shared_memories_agent_player ON shared_memories(to_agent_id, player_id);

-- Player & Reputation (D).
CREATE TABLE IF NOT EXISTS players (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	interaction_count INTEGER NOT NULL DEFAULT 0,
	global_reputation REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reputation_edges (
	player_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	reputation REAL NOT NULL DEFAULT 0,
	last_interaction INTEGER NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (player_id, agent_id)
);
CREATE INDEX IF NOT EXISTS idx_reputation_player ON reputation_edges(player_id);

CREATE TABLE IF NOT EXISTS action_log (
	id TEXT PRIMARY KEY,
	player_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	action TEXT NOT NULL,
	response TEXT NOT NULL,
	reputation_delta REAL NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_log_player ON action_log(player_id);

CREATE TABLE IF NOT EXISTS rumors (
	id TEXT PRIMARY KEY,
	about_player_id TEXT NOT NULL,
	text TEXT NOT NULL,
	truthfulness REAL NOT NULL,
	spread_count INTEGER NOT NULL DEFAULT 0,
	author_agent_id TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rumors_player ON rumors(about_player_id);

CREATE TABLE IF NOT EXISTS rumor_beliefs (
	rumor_id TEXT NOT NULL,
	listener_agent_id TEXT NOT NULL,
	belief REAL NOT NULL,
	heard_at INTEGER NOT NULL,
	PRIMARY KEY (rumor_id, listener_agent_id)
);

-- Fleet Coordinator (F): agent relations, and §4.7 state machines.
CREATE TABLE IF NOT EXISTS agent_relations (
	agent_a TEXT NOT NULL,
	agent_b TEXT NOT NULL, -- agent_a < agent_b lexicographically; undirected edge
	score REAL NOT NULL,
	shared_experience_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (agent_a, agent_b)
);
CREATE INDEX IF NOT EXISTS idx_agent_relations_a ON agent_relations(agent_a);
CREATE INDEX IF NOT EXISTS idx_agent_relations_b ON agent_relations(agent_b);

CREATE TABLE IF NOT EXISTS quests (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	player_id TEXT,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	deadline INTEGER,
	reward_gold INTEGER NOT NULL DEFAULT 0,
	reward_reputation REAL NOT NULL DEFAULT 0,
	reward_item TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quests_status ON quests(status);
CREATE INDEX IF NOT EXISTS idx_quests_agent ON quests(agent_id);

CREATE TABLE IF NOT EXISTS quest_chains (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	steps TEXT NOT NULL, -- comma-joined step identifiers
	cursor INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quest_chains_status ON quest_chains(status);

CREATE TABLE IF NOT EXISTS trade_routes (
	id TEXT PRIMARY KEY,
	from_agent_id TEXT NOT NULL,
	to_agent_id TEXT NOT NULL,
	risk_level REAL NOT NULL,
	profit_margin REAL NOT NULL,
	status TEXT NOT NULL,
	trade_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_routes_status ON trade_routes(status);

CREATE TABLE IF NOT EXISTS territorial_battles (
	id TEXT PRIMARY KEY,
	territory_id TEXT NOT NULL,
	attacker_faction TEXT NOT NULL,
	defender_faction TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	resolved_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_battles_status ON territorial_battles(status);

CREATE TABLE IF NOT EXISTS territories (
	id TEXT PRIMARY KEY,
	controlling_faction TEXT NOT NULL,
	strength REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS npc_goals (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	title TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	steps TEXT NOT NULL, -- comma-joined
	status TEXT NOT NULL,
	reward_gold INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_goals_agent ON npc_goals(agent_id);
`
