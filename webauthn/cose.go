package webauthn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// COSE algorithm identifiers accepted for new credentials.
const (
	AlgorithmES256 = int(webauthncose.AlgES256)
	AlgorithmRS256 = int(webauthncose.AlgRS256)

	p256PointLen   = 65
	rsaExponentLen = 3
)

// EncodePublicKey decodes a COSE credential public key and returns its
// algorithm with the stored form: the SEC1 uncompressed point for ES256,
// PKCS#1 DER for RS256.
func EncodePublicKey(cose []byte) (int, []byte, error) {
	key, err := webauthncose.ParsePublicKey(cose)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: cose key: %v", ErrInvalidData, err)
	}
	switch k := key.(type) {
	case webauthncose.EC2PublicKeyData:
		return encodeEC2(k)
	case webauthncose.RSAPublicKeyData:
		return encodeRSA(k)
	default:
		return 0, nil, ErrUnsupportedAlgorithm
	}
}

func encodeEC2(k webauthncose.EC2PublicKeyData) (int, []byte, error) {
	if k.Algorithm != int64(webauthncose.AlgES256) || k.Curve != int64(webauthncose.P256) {
		return 0, nil, ErrUnsupportedAlgorithm
	}
	if len(k.XCoord) != 32 || len(k.YCoord) != 32 {
		return 0, nil, fmt.Errorf("%w: bad P-256 coordinate length", ErrInvalidData)
	}
	point := make([]byte, 0, p256PointLen)
	point = append(point, 0x04)
	point = append(point, k.XCoord...)
	point = append(point, k.YCoord...)
	if _, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), point); err != nil {
		return 0, nil, fmt.Errorf("%w: point not on curve", ErrInvalidData)
	}
	return AlgorithmES256, point, nil
}

// encodeRSA refuses exponents that could never verify a signature later.
func encodeRSA(k webauthncose.RSAPublicKeyData) (int, []byte, error) {
	if k.Algorithm != int64(webauthncose.AlgRS256) {
		return 0, nil, ErrUnsupportedAlgorithm
	}
	if len(k.Modulus) == 0 || len(k.Exponent) == 0 || len(k.Exponent) > rsaExponentLen {
		return 0, nil, fmt.Errorf("%w: bad RSA parameters", ErrInvalidData)
	}
	e := new(big.Int).SetBytes(k.Exponent).Int64()
	if e < 3 || e%2 == 0 {
		return 0, nil, fmt.Errorf("%w: bad RSA exponent %d", ErrInvalidData, e)
	}
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(k.Modulus), E: int(e)}
	return AlgorithmRS256, x509.MarshalPKCS1PublicKey(pub), nil
}

type signatureVerifier interface {
	Verify(data []byte, sig []byte) (bool, error)
}

// storedKey rebuilds a COSE key from its stored form.
func storedKey(algorithm int, stored []byte) (signatureVerifier, error) {
	switch algorithm {
	case AlgorithmES256:
		if len(stored) != p256PointLen || stored[0] != 0x04 {
			return nil, fmt.Errorf("%w: stored key is not an uncompressed P-256 point", ErrInvalidData)
		}
		return &webauthncose.EC2PublicKeyData{
			PublicKeyData: webauthncose.PublicKeyData{
				KeyType:   int64(webauthncose.EllipticKey),
				Algorithm: int64(webauthncose.AlgES256),
			},
			Curve:  int64(webauthncose.P256),
			XCoord: stored[1:33],
			YCoord: stored[33:],
		}, nil
	case AlgorithmRS256:
		pub, err := x509.ParsePKCS1PublicKey(stored)
		if err != nil {
			return nil, fmt.Errorf("%w: stored key: %v", ErrInvalidData, err)
		}
		if pub.E >= 1<<(8*rsaExponentLen) {
			return nil, fmt.Errorf("%w: stored key exponent", ErrInvalidData)
		}
		return &webauthncose.RSAPublicKeyData{
			PublicKeyData: webauthncose.PublicKeyData{
				KeyType:   int64(webauthncose.RSAKey),
				Algorithm: int64(webauthncose.AlgRS256),
			},
			Modulus:  pub.N.Bytes(),
			Exponent: big.NewInt(int64(pub.E)).FillBytes(make([]byte, rsaExponentLen)),
		}, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}
