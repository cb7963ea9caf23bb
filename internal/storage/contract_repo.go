package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"precheck/internal/models"
	"precheck/internal/util"
)

var ErrContractVersionNotFound = errors.New("contract version not found")

type ContractRepo struct {
	db *DB
}

func NewContractRepo(db *DB) *ContractRepo {
	return &ContractRepo{db: db}
}

func (r *ContractRepo) CreateContract(ctx context.Context, name, counterparty, contractType string) (string, error) {
	id := util.NewID("contract")
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO contracts (id, name, counterparty, contract_type)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''))`, id, name, counterparty, contractType)
	if err != nil {
		return "", fmt.Errorf("create contract: %w", err)
	}
	return id, nil
}

func (r *ContractRepo) CreateVersion(ctx context.Context, v models.ContractVersion) (string, error) {
	id := util.NewID("cv")
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO contract_versions (id, contract_id, version_no, object_key, mime, sha256)
VALUES ($1, $2, COALESCE((SELECT MAX(version_no) FROM contract_versions WHERE contract_id=$2), 0) + 1, $3, $4, $5)`,
		id, v.ContractID, v.ObjectKey, v.Mime, v.SHA256)
	if err != nil {
		return "", fmt.Errorf("create contract version: %w", err)
	}
	return id, nil
}

func (r *ContractRepo) GetVersion(ctx context.Context, versionID string) (models.ContractVersion, error) {
	var v models.ContractVersion
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, contract_id, version_no, object_key, mime, sha256, created_at
FROM contract_versions
WHERE id=$1`, versionID).
		Scan(&v.ID, &v.ContractID, &v.VersionNo, &v.ObjectKey, &v.Mime, &v.SHA256, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ContractVersion{}, ErrContractVersionNotFound
		}
		return models.ContractVersion{}, fmt.Errorf("get contract version: %w", err)
	}
	return v, nil
}
