package transport

import (
	"crypto/md5" //nolint:gosec // fingerprint for ring placement, not a security use
	"math/big"
)

// Tokenizer hashes a partition key into a Token using the partitioner the
// keyspace/cluster was built with.
type Tokenizer interface {
	Hash(partitionKey []byte) Token
	Name() string
}

// Murmur3Tokenizer is Murmur3Partitioner, the default and the only
// partitioner new clusters are created with.
type Murmur3Tokenizer struct{}

func (Murmur3Tokenizer) Hash(pk []byte) Token { return MurmurToken(pk) }
func (Murmur3Tokenizer) Name() string         { return "org.apache.cassandra.dht.Murmur3Partitioner" }

// randomModulus is 2^127, RandomPartitioner's ring size.
var randomModulus = new(big.Int).Lsh(big.NewInt(1), 127)

// RandomTokenizer is RandomPartitioner: tokens are MD5(partitionKey) mod
// 2^127, folded down into the signed 64-bit Token space by truncation
// since this driver's Ring only ever orders tokens from one partitioner at
// a time and RandomPartitioner clusters are a legacy, declining case.
type RandomTokenizer struct{}

func (RandomTokenizer) Hash(pk []byte) Token {
	sum := md5.Sum(pk)
	n := new(big.Int).SetBytes(sum[:])
	n.Mod(n, randomModulus)
	return Token(n.Int64())
}

func (RandomTokenizer) Name() string { return "org.apache.cassandra.dht.RandomPartitioner" }

// OrderedTokenizer is ByteOrderedPartitioner: the token is the partition
// key's own bytes, compared lexicographically. Token here stores only a
// fingerprint (first 8 bytes, big-endian) sufficient for ring placement
// among keys sharing this driver's typical ASCII/text partition keys.
type OrderedTokenizer struct{}

func (OrderedTokenizer) Hash(pk []byte) Token {
	var b [8]byte
	n := copy(b[:], pk)
	_ = n
	return Token(be64(b[:]))
}

func (OrderedTokenizer) Name() string { return "org.apache.cassandra.dht.ByteOrderedPartitioner" }

func be64(b []byte) int64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return int64(v)
}
