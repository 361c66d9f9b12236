package service

import (
	"math/rand"
	"strings"

	"github.com/couponbook/internal/constants"
	"github.com/couponbook/internal/repository"
)

// codeAlphabet 去除易混淆字符（0/O/o、1/I/l/i、u-z 小写段）后的 49 字符表
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrst"

const (
	// 生成券码的随机段长度与数量上下限
	generatorMinCodeLength = 1
	generatorMaxCodeLength = 64
	generatorMaxAmount     = 10000
)

// CodeGenerator 券码生成器，负责产出册内唯一的随机券码
type CodeGenerator struct {
	codeRepo repository.CodeRepository
}

// NewCodeGenerator 创建券码生成器
func NewCodeGenerator(codeRepo repository.CodeRepository) *CodeGenerator {
	return &CodeGenerator{codeRepo: codeRepo}
}

// Generate 为指定券册生成 amount 个互不重复且未入库的券码。
// 每轮只补齐缺口：随机产出候选后先做批内去重，再与库内已有券码比对，
// 存活者进入结果集；最多补齐 constants.GeneratorMaxRounds 轮，
// 轮数耗尽仍不足额时返回 ErrGenerationExhausted，调用方不得落库。
func (g *CodeGenerator) Generate(bookID string, amount int, prefix string, codeLength int) ([]string, error) {
	if g == nil || g.codeRepo == nil {
		return nil, ErrAddCodesFailed
	}
	bookID = strings.TrimSpace(bookID)
	prefix = strings.TrimSpace(prefix)
	if bookID == "" {
		return nil, ErrCodeInvalid
	}
	if amount <= 0 || amount > generatorMaxAmount {
		return nil, ErrCodeInvalid
	}
	if codeLength < generatorMinCodeLength || codeLength > generatorMaxCodeLength {
		return nil, ErrCodeInvalid
	}

	accepted := make([]string, 0, amount)
	seen := make(map[string]struct{}, amount)

	for round := 0; round < constants.GeneratorMaxRounds && len(accepted) < amount; round++ {
		shortfall := amount - len(accepted)

		candidates := make([]string, 0, shortfall)
		for i := 0; i < shortfall; i++ {
			code := prefix + randomCodeSuffix(codeLength)
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			candidates = append(candidates, code)
		}
		if len(candidates) == 0 {
			continue
		}

		existing, err := g.codeRepo.ListExistingCodes(bookID, candidates)
		if err != nil {
			return nil, ErrAddCodesFailed
		}
		taken := make(map[string]struct{}, len(existing))
		for _, code := range existing {
			taken[code] = struct{}{}
		}
		for _, code := range candidates {
			if _, collided := taken[code]; collided {
				continue
			}
			accepted = append(accepted, code)
		}
	}

	if len(accepted) < amount {
		return nil, ErrGenerationExhausted
	}
	return accepted, nil
}

func randomCodeSuffix(length int) string {
	builder := strings.Builder{}
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return builder.String()
}
