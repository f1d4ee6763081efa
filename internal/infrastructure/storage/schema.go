package storage

const schema = `
CREATE TABLE IF NOT EXISTS stock_symbols (
    id           BIGSERIAL PRIMARY KEY,
    symbol       VARCHAR(32)  NOT NULL UNIQUE,
    company_name VARCHAR(255) NOT NULL DEFAULT '',
    is_active    BOOLEAN      NOT NULL DEFAULT TRUE,
    is_default   BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS financial_data (
    id              BIGSERIAL PRIMARY KEY,
    stock_symbol_id BIGINT       NOT NULL REFERENCES stock_symbols(id),
    symbol          VARCHAR(32)  NOT NULL,
    company_name    VARCHAR(255) NOT NULL DEFAULT '',
    price           DOUBLE PRECISION,
    previous_close  DOUBLE PRECISION,
    change          DOUBLE PRECISION,
    change_percent  DOUBLE PRECISION,
    volume          DOUBLE PRECISION,
    market_cap      DOUBLE PRECISION,
    pe_ratio        DOUBLE PRECISION,
    dividend_yield  DOUBLE PRECISION,
    high_52w        DOUBLE PRECISION,
    low_52w         DOUBLE PRECISION,
    source          VARCHAR(16)  NOT NULL,
    raw_data        JSONB,
    collected_at    TIMESTAMPTZ  NOT NULL
);
CREATE INDEX IF NOT EXISTS financial_data_symbol_idx ON financial_data (symbol, collected_at DESC);

CREATE TABLE IF NOT EXISTS sentiment_analysis (
    id              BIGSERIAL PRIMARY KEY,
    stock_symbol_id BIGINT           NOT NULL REFERENCES stock_symbols(id),
    symbol          VARCHAR(32)      NOT NULL,
    sentiment       VARCHAR(16)      NOT NULL,
    sentiment_score DOUBLE PRECISION NOT NULL,
    news_count      INTEGER          NOT NULL DEFAULT 0,
    positive_count  INTEGER          NOT NULL DEFAULT 0,
    negative_count  INTEGER          NOT NULL DEFAULT 0,
    neutral_count   INTEGER          NOT NULL DEFAULT 0,
    trending_topics TEXT[]           NOT NULL DEFAULT '{}',
    news_sources    TEXT[]           NOT NULL DEFAULT '{}',
    enrichment      JSONB,
    raw_data        JSONB,
    analyzed_at     TIMESTAMPTZ      NOT NULL
);
CREATE INDEX IF NOT EXISTS sentiment_analysis_symbol_idx ON sentiment_analysis (symbol, analyzed_at DESC);

CREATE TABLE IF NOT EXISTS articles (
    id                    BIGSERIAL PRIMARY KEY,
    stock_symbol_id       BIGINT       NOT NULL REFERENCES stock_symbols(id),
    financial_data_id     BIGINT       NOT NULL REFERENCES financial_data(id),
    sentiment_analysis_id BIGINT       NOT NULL REFERENCES sentiment_analysis(id),
    analysis_id           BIGINT,
    symbol                VARCHAR(32)  NOT NULL,
    title                 VARCHAR(500) NOT NULL,
    content               TEXT         NOT NULL,
    status                VARCHAR(32)  NOT NULL,
    motivo_reprovacao     TEXT,
    recomendacao          VARCHAR(255),
    metadata              JSONB,
    notified_at           TIMESTAMPTZ,
    reviewed_at           TIMESTAMPTZ,
    published_at          TIMESTAMPTZ,
    archived_at           TIMESTAMPTZ,
    created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS articles_status_idx ON articles (status, created_at DESC);

CREATE TABLE IF NOT EXISTS analyses (
    id                    BIGSERIAL PRIMARY KEY,
    correlation_id        VARCHAR(64)  NOT NULL,
    stock_symbol_id       BIGINT REFERENCES stock_symbols(id),
    company_name          VARCHAR(255) NOT NULL,
    ticker                VARCHAR(32)  NOT NULL DEFAULT '',
    status                VARCHAR(32)  NOT NULL,
    financial_data_id     BIGINT REFERENCES financial_data(id),
    sentiment_analysis_id BIGINT REFERENCES sentiment_analysis(id),
    article_id            BIGINT REFERENCES articles(id),
    error_message         TEXT         NOT NULL DEFAULT '',
    logs                  JSONB        NOT NULL DEFAULT '[]',
    created_by            VARCHAR(255) NOT NULL DEFAULT '',
    started_at            TIMESTAMPTZ,
    completed_at          TIMESTAMPTZ,
    created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS analyses_status_idx ON analyses (status, created_at DESC);
`

// requiredTables is what EnsureSchema checks before declaring the store ready.
var requiredTables = []string{"stock_symbols", "financial_data", "sentiment_analysis", "articles", "analyses"}
